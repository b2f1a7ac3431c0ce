package migrate

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/syssam/fluent/dialect/sql"
)

// Seeder populates one independent slice of the database. Each seeder
// runs inside its own transaction. Seeders must not depend on each
// other's data since they may run concurrently.
type Seeder struct {
	Name string
	Run  func(ctx context.Context, tx *sql.Tx) error
}

// SeedRunner fans registered seeders out over the driver's connection
// pool, bounded by its concurrency limit.
type SeedRunner struct {
	drv     *sql.Driver
	limit   int
	seeders []Seeder
	names   map[string]bool
}

// NewSeedRunner creates a SeedRunner with the given concurrency limit.
// A limit below 1 runs the seeders sequentially.
func NewSeedRunner(drv *sql.Driver, limit int) *SeedRunner {
	if limit < 1 {
		limit = 1
	}
	return &SeedRunner{drv: drv, limit: limit, names: make(map[string]bool)}
}

// Register adds a seeder. Nameless seeders and duplicate names are
// rejected.
func (s *SeedRunner) Register(seeder Seeder) error {
	switch {
	case seeder.Name == "":
		return fmt.Errorf("migrate: seeder requires a name")
	case seeder.Run == nil:
		return fmt.Errorf("migrate: seeder %q has no run step", seeder.Name)
	case s.names[seeder.Name]:
		return fmt.Errorf("migrate: duplicate seeder %q", seeder.Name)
	}
	s.names[seeder.Name] = true
	s.seeders = append(s.seeders, seeder)
	return nil
}

// Run executes every registered seeder, each inside its own transaction.
// The first failure cancels the remaining seeders.
func (s *SeedRunner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.limit)
	for _, seeder := range s.seeders {
		g.Go(func() error {
			err := s.drv.Transaction(ctx, func(tx *sql.Tx) error {
				return seeder.Run(ctx, tx)
			})
			if err != nil {
				return fmt.Errorf("migrate: seeder %s: %w", seeder.Name, err)
			}
			slog.Info("migrate: seeded", "seeder", seeder.Name)
			return nil
		})
	}
	return g.Wait()
}
