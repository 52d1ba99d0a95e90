// Package main provides the contabil command line: schema migrations, fiscal
// period maintenance, counters and ledger reports.
// Usage: contabil migrate [up|down]
//        contabil period ensure --company <id> --year 2025
//        contabil period close --company <id> --period <id> --status hard_close
//        contabil ledger trial-balance --company <id> --from 2025-01-01 --to 2025-03-31
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"contabil/internal/core/apperror"
	"contabil/internal/infrastructure/config"
	"contabil/internal/infrastructure/storage/postgres"
	"contabil/pkg/logger"
)

// command runs one subcommand against a wired app.
type command struct {
	usage string
	flags func(fs *pflag.FlagSet)
	run   func(ctx context.Context, a *app, fs *pflag.FlagSet) error
}

var commands = map[string]command{
	"period ensure": {
		usage: "period ensure --company <id> --year <yyyy>",
		flags: companyYearFlags,
		run:   periodEnsure,
	},
	"period list": {
		usage: "period list --company <id> --year <yyyy>",
		flags: companyYearFlags,
		run:   periodList,
	},
	"period close": {
		usage: "period close --company <id> --period <id> [--status soft_close|hard_close]",
		flags: periodCloseFlags,
		run:   periodClose,
	},
	"period reopen": {
		usage: "period reopen --company <id> --period <id> --reason <text> --actor <name>",
		flags: periodReopenFlags,
		run:   periodReopen,
	},
	"counter next": {
		usage: "counter next --company <id> --type <JOURNAL|INVOICE|...> --series <s> --year <yyyy>",
		flags: counterFlags,
		run:   counterNext,
	},
	"counter list": {
		usage: "counter list --company <id> --year <yyyy>",
		flags: companyYearFlags,
		run:   counterList,
	},
	"ledger trial-balance": {
		usage: "ledger trial-balance --company <id> [--from yyyy-mm-dd] [--to yyyy-mm-dd]",
		flags: rangeFlags,
		run:   trialBalance,
	},
	"vat transfers": {
		usage: "vat transfers --invoice <id>",
		flags: invoiceFlags,
		run:   vatTransfers,
	},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if appErr, ok := apperror.AsAppError(err); ok && len(appErr.Details) > 0 {
			for k, v := range appErr.Details {
				fmt.Fprintf(os.Stderr, "  %s: %v\n", k, v)
			}
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	switch args[0] {
	case "help", "--help", "-h":
		printUsage()
		return nil
	case "migrate":
		return migrateCmd(ctx, args[1:])
	}

	if len(args) < 2 {
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
	name := args[0] + " " + args[1]
	cmd, ok := commands[name]
	if !ok {
		printUsage()
		return fmt.Errorf("unknown command %q", name)
	}

	fs := config.Flags(name)
	fs.String("actor", "cli", "actor recorded in the audit trail")
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(args[2:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Println("Usage: contabil " + cmd.usage)
			return nil
		}
		return err
	}

	cfg, log, err := setup(fs)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	actor, _ := fs.GetString("actor")
	ctx = commandContext(ctx, log, actor)

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return cmd.run(ctx, a, fs)
}

func setup(fs *pflag.FlagSet) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(fs)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.Development(),
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func migrateCmd(ctx context.Context, args []string) error {
	fs := config.Flags("migrate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	direction := postgres.MigrateUp
	if fs.NArg() > 0 {
		direction = postgres.MigrateDirection(fs.Arg(0))
	}

	cfg, log, err := setup(fs)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	return postgres.Migrate(logger.WithLogger(ctx, log), cfg.Database.URL, direction)
}

func printUsage() {
	fmt.Println(`contabil - accounting core CLI

Usage:
  contabil <command> [options]

Commands:
  migrate [up|down]      Apply or roll back the database schema
  period ensure          Create the monthly periods of a year
  period list            List the periods of a year
  period close           Soft- or hard-close a period
  period reopen          Reopen a closed period (reason required)
  counter next           Allocate the next number of a counter
  counter list           Show the counters of a company
  ledger trial-balance   Print the trial balance of a company
  vat transfers          Show the deferred VAT state of an invoice

Global options:
  --database-url   PostgreSQL connection string (DATABASE_URL)
  --log-level      Log level (LOG_LEVEL)
  --env            Application environment (APP_ENV)
  --chart-file     Chart of accounts file (CHART_FILE)`)
}
