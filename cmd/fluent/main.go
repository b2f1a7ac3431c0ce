// Command fluent runs schema migrations and seeders against a connection
// declared in a YAML config file. Migrations are plain SQL file pairs
// ("0001_create_users.up.sql" / "0001_create_users.down.sql") in the
// migrations directory, seeders are SQL files in the seeds directory.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/syssam/fluent"
	"github.com/syssam/fluent/dialect/sql"
	"github.com/syssam/fluent/migrate"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type config struct {
	Default     string                `yaml:"default"`
	Connections map[string]connection `yaml:"connections"`
}

type connection struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

var (
	flagConfig     string
	flagEnv        string
	flagConnection string
	flagPath       string
	flagSeedPath   string
	flagTable      string
)

func main() {
	root := &cobra.Command{
		Use:           "fluent",
		Short:         "database migrations and seeding",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", "fluent.yaml", "config file")
	root.PersistentFlags().StringVar(&flagEnv, "env", ".env", "env file loaded before the config is expanded")
	root.PersistentFlags().StringVar(&flagConnection, "connection", "", "connection name (defaults to the config's default)")
	root.PersistentFlags().StringVar(&flagTable, "migrations-table", migrate.DefaultTable, "bookkeeping table name")

	mig := &cobra.Command{Use: "migrate", Short: "manage schema migrations"}
	mig.PersistentFlags().StringVar(&flagPath, "path", "migrations", "migrations directory")
	mig.AddCommand(
		migrateCmd("up", "apply pending migrations", func(ctx context.Context, r *migrate.Runner) error {
			ran, err := r.Up(ctx)
			reportRan("applied", ran)
			return err
		}),
		migrateCmd("down", "roll back the last batch", func(ctx context.Context, r *migrate.Runner) error {
			ran, err := r.Down(ctx)
			reportRan("rolled back", ran)
			return err
		}),
		migrateCmd("fresh", "roll back everything and migrate again", func(ctx context.Context, r *migrate.Runner) error {
			return r.Fresh(ctx)
		}),
		migrateCmd("status", "show the state of every migration", func(ctx context.Context, r *migrate.Runner) error {
			statuses, err := r.Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range statuses {
				if s.Applied {
					color.Green("  up    %-6d %s", s.Batch, s.Name)
				} else {
					color.Yellow("  down         %s", s.Name)
				}
			}
			return nil
		}),
	)
	root.AddCommand(mig)

	seed := &cobra.Command{
		Use:   "seed",
		Short: "run database seeders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context())
		},
	}
	seed.Flags().StringVar(&flagSeedPath, "path", "seeds", "seeds directory")
	root.AddCommand(seed)

	if err := root.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func migrateCmd(use, short string, run func(ctx context.Context, r *migrate.Runner) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			drv, err := openDriver()
			if err != nil {
				return err
			}
			defer drv.Close()
			r := migrate.NewRunner(drv, migrate.WithTable(flagTable))
			if err := r.LoadDir(os.DirFS(flagPath)); err != nil {
				return err
			}
			return run(cmd.Context(), r)
		},
	}
}

func reportRan(verb string, names []string) {
	if len(names) == 0 {
		color.Yellow("nothing to do")
		return
	}
	for _, name := range names {
		color.Green("%s %s", verb, name)
	}
}

func runSeed(ctx context.Context) error {
	drv, err := openDriver()
	if err != nil {
		return err
	}
	defer drv.Close()
	runner := migrate.NewSeedRunner(drv, 4)
	entries, err := fs.ReadDir(os.DirFS(flagSeedPath), ".")
	if err != nil {
		return fmt.Errorf("read seeds: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(flagSeedPath, name)
		err := runner.Register(migrate.Seeder{
			Name: strings.TrimSuffix(name, ".sql"),
			Run: func(ctx context.Context, tx *sql.Tx) error {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				return tx.Exec(ctx, string(data), []any{}, nil)
			},
		})
		if err != nil {
			return err
		}
	}
	if err := runner.Run(ctx); err != nil {
		return err
	}
	color.Green("seeded %d files", len(names))
	return nil
}

// openDriver resolves the selected connection from the config file and
// opens it. DSN values may reference environment variables with ${VAR},
// loaded from the env file first when it exists.
func openDriver() (*fluent.Driver, error) {
	if err := godotenv.Load(flagEnv); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load %s: %w", flagEnv, err)
	}
	data, err := os.ReadFile(flagConfig)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", flagConfig, err)
	}
	name := flagConnection
	if name == "" {
		name = cfg.Default
	}
	conn, ok := cfg.Connections[name]
	if !ok {
		return nil, fmt.Errorf("unknown connection %q in %s", name, flagConfig)
	}
	return fluent.Open(conn.Driver, os.ExpandEnv(conn.DSN))
}
