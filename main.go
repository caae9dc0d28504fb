package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	configPath string
	overrides  cliOverrides
)

// cliOverrides are flag values that replace the corresponding config keys
// when the flag was given.
type cliOverrides struct {
	rows     int
	workers  int
	truncate bool
	noJumble bool
	strict   bool
	debug    bool
}

var rootCmd = &cobra.Command{
	Use:          "dbfill [config.toml]",
	Short:        "Fill every table of a database with generated rows",
	Args:         cobra.MaximumNArgs(1),
	RunE:         runFill,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the dbfill version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionString())
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "path to fill TOML config file")
	f.IntVar(&overrides.rows, "rows", 0, "rows to add per table")
	f.IntVar(&overrides.workers, "workers", 0, "number of tables filled in parallel")
	f.BoolVar(&overrides.truncate, "truncate", false, "empty every table instead of filling")
	f.BoolVar(&overrides.noJumble, "no-jumble", false, "skip foreign key jumbling")
	f.BoolVar(&overrides.strict, "strict", false, "report duplicate keys instead of ignoring them")
	f.BoolVar(&overrides.debug, "debug", false, "echo SQL statements")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runFill(cmd *cobra.Command, args []string) error {
	// Positional arg takes precedence over --config
	cfgPath := configPath
	if len(args) > 0 {
		cfgPath = args[0]
	}
	if cfgPath == "" {
		return fmt.Errorf("config file required: dbfill <config.toml> or dbfill --config <config.toml>")
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if err := overrides.apply(cmd, cfg); err != nil {
		return err
	}

	summary, err := fill(cmd.Context(), cfg)
	if summary != nil {
		printSummary(cmd.OutOrStdout(), *summary)
	}
	if err != nil {
		return err
	}
	if cfg.StrictInsert {
		if failed := summary.failedTables(); len(failed) > 0 {
			return fmt.Errorf("%d table(s) not populated: %v", len(failed), failed)
		}
	}
	return nil
}

// apply copies every explicitly set flag into cfg and re-validates it.
func (o cliOverrides) apply(cmd *cobra.Command, cfg *FillConfig) error {
	f := cmd.Flags()
	if f.Changed("rows") {
		cfg.Rows = o.rows
	}
	if f.Changed("workers") {
		cfg.Workers = o.workers
	}
	if f.Changed("truncate") {
		cfg.Truncate = o.truncate
	}
	if f.Changed("no-jumble") {
		cfg.JumbleFKs = !o.noJumble
	}
	if f.Changed("strict") {
		cfg.StrictInsert = o.strict
	}
	if f.Changed("debug") {
		cfg.Debug = o.debug
	}
	return cfg.validate()
}

// fill runs one complete pass against the configured database. The summary
// is returned whenever the run got as far as scheduling, even on error.
func fill(ctx context.Context, cfg *FillConfig) (*runSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	d, err := newDialect(cfg.Database.Type)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	log.Printf("dbfill %s: populating %s", versionString(), d.Name())
	log.Printf("config: rows=%d workers=%d jumble_fks=%t fk_pct_replace=%d strict_insert=%t process_int_fks=%t seed=%d",
		cfg.Rows, cfg.Workers, cfg.JumbleFKs, cfg.FKPctReplace, cfg.StrictInsert, cfg.ProcessIntFKs, seed)

	// 1. Connect
	log.Printf("connecting to %s...", d.Name())
	db, err := d.OpenDB(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	dbName, err := d.ExtractDBName(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxPacket {
		mysqlMaximizePacket(ctx, db, mysqlDSNUser(cfg.Database.DSN))
	}

	// 2. Introspect
	log.Printf("introspecting %s schema '%s'...", d.Name(), dbName)
	schema, err := d.IntrospectSchema(ctx, db, dbName)
	if err != nil {
		return nil, fmt.Errorf("introspect schema: %w", err)
	}
	if len(schema.Tables) == 0 {
		return nil, fmt.Errorf("%s: %w", dbName, ErrNoTables)
	}
	log.Printf("found %d tables, %d foreign keys", len(schema.Tables), len(schema.ForeignKeys))
	logIntrospectionWarnings(ctx, db, d, schema, dbName)

	summary := &runSummary{Database: dbName, Engine: d.Name(), Rows: cfg.Rows}

	// Truncate mode replaces the fill entirely.
	if cfg.Truncate {
		log.Printf("truncating %d tables...", len(schema.Tables))
		_, err := truncateTables(ctx, db, d, schema.TableNames(), cfg.Debug)
		summary.Rows = 0
		summary.Elapsed = time.Since(start)
		return summary, err
	}

	// 3. before_fill hooks
	if err := runHookFiles(ctx, db, cfg, dbName, cfg.Hooks.BeforeFill, "before_fill"); err != nil {
		return nil, fmt.Errorf("before_fill hooks: %w", err)
	}

	// 4. Fill tables in parallel
	fks := buildForeignKeyIndex(schema.ForeignKeys)
	tasks := make([]tableRunner, len(schema.Tables))
	for i, t := range schema.Tables {
		tasks[i] = newTableWorker(db, d, cfg, t, fks, seed+int64(i))
	}
	log.Printf("filling %d tables with %d workers...", len(tasks), cfg.Workers)
	summary.Outcomes = runTables(ctx, cfg.Workers, tasks)

	// 5. Jumble + after_fill hooks
	log.Printf("running post-fill steps...")
	summary.Jumble, err = postFill(ctx, db, d, schema, cfg, dbName)
	summary.Elapsed = time.Since(start)
	if err != nil {
		return summary, fmt.Errorf("post-fill: %w", err)
	}

	log.Printf("fill completed in %s", summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}

// logIntrospectionWarnings reports columns and objects that change what the
// fill will do. Lookup failures are logged, never fatal.
func logIntrospectionWarnings(ctx context.Context, db *sql.DB, d Dialect, schema *Schema, dbName string) {
	warnings := collectGeneratedColumnWarnings(schema)
	objs, err := d.IntrospectObjects(ctx, db, dbName)
	if err != nil {
		log.Printf("  WARN: could not list views and triggers: %v", err)
	} else {
		warnings = append(warnings, sourceObjectWarnings(objs)...)
	}
	for _, w := range warnings {
		log.Printf("  WARN: %s", w)
	}
}
