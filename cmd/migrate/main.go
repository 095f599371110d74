package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/VincentPrime/endlessgrindbackend/internal/logging"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

// Usage: migrate [up|down|version|steps N]
func main() {
	_ = godotenv.Load()
	if _, err := logging.New(logging.Options{Level: os.Getenv("LOG_LEVEL"), Format: "text"}); err != nil {
		fmt.Fprintf(os.Stderr, "configure logging: %v\n", err)
		os.Exit(1)
	}

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		fatal("DB_URL environment variable is required")
	}

	migrationsPath, err := findMigrationsDir()
	if err != nil {
		fatal("migrations directory not found", "error", err)
	}

	m, err := migrate.New("file://"+migrationsPath, dbURL)
	if err != nil {
		fatal("failed to initialise migrations", "error", err)
	}
	defer m.Close()

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if len(os.Args) < 3 {
			fatal("steps requires a count")
		}
		n, convErr := strconv.Atoi(os.Args[2])
		if convErr != nil || n == 0 {
			fatal("invalid step count", "value", os.Args[2])
		}
		err = m.Steps(n)
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
			fatal("failed to read version", "error", verr)
		}
		slog.Info("schema version", "version", version, "dirty", dirty)
		return
	default:
		fatal("unknown command", "command", cmd)
	}

	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fatal("migration failed", "command", cmd, "error", err)
	}
	slog.Info("migration successful", "command", cmd, "path", migrationsPath)
}

// findMigrationsDir walks up from the working directory and the executable
// looking for a migrations folder.
func findMigrationsDir() (string, error) {
	var candidates []string
	if cwd, err := os.Getwd(); err == nil {
		current := cwd
		for i := 0; i < 6; i++ {
			candidates = append(candidates, filepath.Join(current, "migrations"))
			parent := filepath.Dir(current)
			if parent == current {
				break
			}
			current = parent
		}
	}
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		candidates = append(candidates,
			filepath.Join(exeDir, "migrations"),
			filepath.Join(exeDir, "..", "migrations"),
			filepath.Join(exeDir, "..", "..", "migrations"),
		)
	}

	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && info.IsDir() {
			return filepath.Abs(candidate)
		}
	}
	return "", errors.New("no migrations directory in search path")
}

func fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
