package sql

import (
	"reflect"

	"github.com/go-openapi/inflect"
)

// TableFor derives a table name from the struct type of v: the type name
// is underscored and pluralized, so UserProfile resolves to
// "user_profiles". Pointers and slices are unwrapped first.
func TableFor(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && (t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice) {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct || t.Name() == "" {
		return ""
	}
	return inflect.Pluralize(inflect.Underscore(t.Name()))
}
