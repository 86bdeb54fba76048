// Command migrate runs goose commands using the embedded migrations.
//
//	migrate up
//	migrate down
//	migrate status
//	migrate -db postgres://... up-to 1
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"merchpos/internal/repository/postgres"
)

func main() {
	_ = godotenv.Load()

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <command> [args]\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "commands: up, up-by-one, up-to, down, down-to, redo, reset, status, version")
		flag.PrintDefaults()
	}
	dsn := flag.String("db", os.Getenv("DATABASE_URL"), "postgres connection string (defaults to DATABASE_URL)")
	timeout := flag.Duration("timeout", 5*time.Minute, "abort if the migration runs longer than this")
	flag.Parse()
	if flag.NArg() < 1 || *dsn == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if err := run(*dsn, *timeout, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Error("migration failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
	logger.Info("migration complete", "command", flag.Arg(0))
}

func run(dsn string, timeout time.Duration, command string, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return postgres.Migrate(ctx, db, command, args...)
}
