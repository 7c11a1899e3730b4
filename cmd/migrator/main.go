package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/niksmo/gallery/config"
	"github.com/niksmo/gallery/pkg/logger"
	"github.com/spf13/pflag"
)

const (
	dsnFlag           = "dsn"
	migrationPathFlag = "migrations-path"
	downFlag          = "down"
)

func main() {
	dsn, migrationsPath, down := getFlagsValues()
	if dsn == "" {
		dsn = config.Load().SQL.DSN
	}

	syncFn, err := logger.Init(slog.LevelInfo, logger.FormatConsole, "gallery-migrator")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fallDown()
	}
	defer syncFn()

	validateFlags(dsn, migrationsPath)
	makeMigrations(dsn, migrationsPath, down)
}

type MigrationLogger struct {
	logger  *slog.Logger
	verbose bool
}

func NewMigrationLogger() *MigrationLogger {
	return &MigrationLogger{
		logger:  slog.Default(),
		verbose: true,
	}
}

func (ml *MigrationLogger) Printf(format string, v ...any) {
	ml.logger.Info(fmt.Sprintf(format, v...))
}

func (ml *MigrationLogger) Verbose() bool {
	return ml.verbose
}

func getFlagsValues() (dsn, migrations string, down bool) {
	dsnValue := pflag.StringP(dsnFlag, "d", "", "postgres dsn, sql.dsn by default")
	migrationsPath := pflag.StringP(migrationPathFlag, "m", "migrations", "")
	downValue := pflag.Bool(downFlag, false, "roll back every migration")
	pflag.String("config", "config.yaml", "config file")
	pflag.Parse()
	return *dsnValue, *migrationsPath, *downValue
}

func validateFlags(dsn, migrationsPath string) {
	var errs []error

	if dsn == "" {
		errs = append(errs, fmt.Errorf("--%s flag or sql.dsn: required", dsnFlag))
	}

	if migrationsPath == "" {
		errs = append(errs, fmt.Errorf("--%s flag: required", migrationPathFlag))
	}

	if len(errs) != 0 {
		slog.Error("too few args", "err", errors.Join(errs...))
		fallDown()
	}
}

// databaseURL switches a postgres dsn to the pgx5 migrate driver.
func databaseURL(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("dsn must be a postgres url")
	}
	u.Scheme = "pgx5"
	return u.String(), nil
}

func makeMigrations(dsn, migrationsPath string, down bool) {
	dbURL, err := databaseURL(dsn)
	if err != nil {
		slog.Error("invalid dsn", "err", err)
		fallDown()
	}

	m, err := migrate.New(fmt.Sprintf("file://%s", migrationsPath), dbURL)
	if err != nil {
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}

	m.Log = NewMigrationLogger()

	apply := m.Up
	if down {
		apply = m.Down
	}

	if err := apply(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.Log.Printf("no migrations to apply")
			return
		}
		slog.Error("failed to migrate", "err", err)
		fallDown()
	}
	m.Log.Printf("migration applied")
}

func fallDown() {
	os.Exit(2)
}
