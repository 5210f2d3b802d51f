// Command quizapi-admin is an operator CLI for the quiz API database:
// migrations, access code minting, suspension management, and reading the
// security audit log.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/healthquiz/quiz-api/config"
	"github.com/healthquiz/quiz-api/internal/bootstrap"
	"github.com/healthquiz/quiz-api/internal/data"
	"github.com/healthquiz/quiz-api/internal/domain/model"
	"github.com/healthquiz/quiz-api/internal/service"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

const defaultMigrationTimeout = 5 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmdName)
		printUsage()
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status on unknown commands
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.Error("load config failed", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must exit with failure status on config errors
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{Ctx: ctx, Logger: logger, Config: cfg}
	if err := cmd.run(cmdCtx, os.Args[2:]); err != nil {
		logger.Error("command failed", "command", cmd.name, "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must exit with failure status on command errors
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "apply pending database migrations",
			run:         runMigrate,
		},
		"mint-code": {
			name:        "mint-code",
			description: "mint an access code for a plan (-plan 3|7, -username)",
			run:         runMintCode,
		},
		"lift-suspension": {
			name:        "lift-suspension",
			description: "remove an account's suspension (-username)",
			run:         runLiftSuspension,
		},
		"security-log": {
			name:        "security-log",
			description: "print recent security events for an account (-username, -limit)",
			run:         runSecurityLog,
		},
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: quizapi-admin <command> [flags]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "commands:")

	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(os.Stderr, 0, 4, 2, ' ', 0)
	for _, name := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", name, cmds[name].description)
	}
	_ = tw.Flush()
}

func connect(ctx *commandContext) (*sql.DB, error) {
	return bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: ctx.Config.Postgres, Logger: ctx.Logger})
}

func runMigrate(ctx *commandContext, _ []string) error {
	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	migrateCtx, cancel := context.WithTimeout(ctx.Ctx, defaultMigrationTimeout)
	defer cancel()

	return bootstrap.RunMigrations(migrateCtx, db, ctx.Logger)
}

func runMintCode(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("mint-code", flag.ContinueOnError)
	plan := fs.String("plan", "3", "subscription plan (3 or 7)")
	username := fs.String("username", "", "account the code is minted for (optional)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	codeSvc, err := service.NewAccessCodeService(service.AccessCodeServiceOptions{
		Codes:    data.NewAccessCodeRepo(db),
		Accounts: data.NewAccountRepo(db),
		Logger:   ctx.Logger,
	})
	if err != nil {
		return err
	}

	code, err := codeSvc.Mint(ctx.Ctx, model.Plan(*plan), *username, "")
	if err != nil {
		return err
	}

	fmt.Printf("code: %s plan: %s\n", code.Code, code.Plan)
	return nil
}

func runLiftSuspension(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("lift-suspension", flag.ContinueOnError)
	username := fs.String("username", "", "account to unsuspend")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("-username is required")
	}

	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := data.NewAccountRepo(db)
	acct, err := repo.GetByUsername(ctx.Ctx, *username)
	if err != nil {
		return err
	}
	if acct.Suspension == nil {
		fmt.Printf("%s is not suspended\n", *username)
		return nil
	}

	acct.Suspension = nil
	if _, err := repo.Save(ctx.Ctx, acct); err != nil {
		return err
	}

	fmt.Printf("suspension lifted for %s\n", *username)
	return nil
}

func runSecurityLog(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("security-log", flag.ContinueOnError)
	username := fs.String("username", "", "account to inspect")
	limit := fs.Int("limit", 20, "maximum number of events")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("-username is required")
	}

	db, err := connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	events, err := data.NewSecurityEventRepo(db).ListRecent(ctx.Ctx, *username, *limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTYPE\tIP\tDETAILS")
	for _, ev := range events {
		details, _ := json.Marshal(ev.Details)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			ev.CreatedAt.Format(time.RFC3339), ev.EventType, ev.IP, details)
	}
	return tw.Flush()
}
