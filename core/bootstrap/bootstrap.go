package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/recipebot/core/config"
	coredatabase "github.com/m3rciful/recipebot/core/database"
	"github.com/m3rciful/recipebot/core/logger"
)

// Options control the bootstrap pipeline. Nil hooks fall back to the core implementations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(*sqlx.DB, coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
	// Steps records how long each stage took, in pipeline order.
	Steps []Step
}

// Step is one timed bootstrap stage.
type Step struct {
	Name     string
	Duration time.Duration
}

// Run initializes the logger, opens the database and migrates the schema.
// The connection is closed when migrations fail.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}

	res := &Result{}
	timed := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		res.Steps = append(res.Steps, Step{Name: name, Duration: logger.Took(start)})
		return err
	}

	if err := timed("logger", func() error { return loggerInit(opts.Config) }); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	err := timed("database", func() error {
		db, err := connect(opts.Database)
		res.DB = db
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}
	if err := timed("migrate", func() error { return migrate(res.DB, opts.Database) }); err != nil {
		_ = res.DB.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	attrs := []slog.Attr{slog.String("status", "ok")}
	for _, s := range res.Steps {
		attrs = append(attrs, slog.Duration(s.Name, s.Duration))
	}
	logger.LogEvent(logger.Background(), logger.Component("app"), slog.LevelInfo, "bootstrap", attrs...)
	return res, nil
}
