package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/eladdeutch/jobtracker/internal/config"
	"github.com/eladdeutch/jobtracker/internal/db"
	"github.com/eladdeutch/jobtracker/internal/logging"
	"github.com/eladdeutch/jobtracker/internal/mailbox"
	"github.com/eladdeutch/jobtracker/internal/mcp"
	"github.com/eladdeutch/jobtracker/internal/metrics"
	"github.com/eladdeutch/jobtracker/internal/ops"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"scan": true, "process": true, "remind": true, "reject-stale": true, "dedupe": true,
	"apps": true, "show": true, "add": true, "add-bulk": true, "update": true, "fetch-posting": true,
	"status": true, "merge": true, "delete": true,
	"emails": true, "link": true, "dismiss": true, "track": true,
	"reminders": true, "reminder": true, "interview": true,
	"stats": true, "report": true, "export": true, "serve": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode(args []string) bool {
	if len(args) < 2 {
		return false // No args → MCP server
	}
	arg := args[1]
	if cliCommands[arg] {
		return true
	}
	return isHelpOrVersion(args)
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion(args []string) bool {
	if len(args) < 2 {
		return false
	}
	arg := args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
       _       _     _                  _
      (_) ___ | |__ | |_ _ __ __ _  ___| | _____ _ __
      | |/ _ \| '_ \| __| '__/ _' |/ __| |/ / _ \ '__|
      | | (_) | |_) | |_| | | (_| | (__|   <  __/ |
     _/ |\___/|_.__/ \__|_|  \__,_|\___|_|\_\___|_|
    |__/

  Job application tracker fed by your inbox

  Usage: jobtracker <command> [options]
         jobtracker --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion(os.Args) {
		if err := newCLIApp(nil).Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	cliMode := isCLIMode(os.Args)
	if !cliMode && len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'jobtracker --help' for usage.\n")
		os.Exit(1)
	}

	if err := run(cliMode); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cliMode bool) error {
	baseDir, err := config.DefaultBaseDir()
	if err != nil {
		return err
	}
	cwd, _ := os.Getwd()
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logging.Sync(log) }()

	warnUnknownDisabled(log, cfg)

	database, err := db.Init(baseDir)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	p := newPipeline(context.Background(), database, cfg, log)

	if cliMode {
		return newCLIApp(p).Run(os.Args)
	}

	// MCP server mode (default)
	log.Info("starting MCP server", zap.String("version", Version), zap.String("base_dir", baseDir))
	return mcp.Run(p, Version)
}

// newPipeline wires the mailbox, logger and metrics into a pipeline. A
// missing mailbox is not fatal: only scan needs it.
func newPipeline(ctx context.Context, database *sql.DB, cfg *config.Config, log *zap.Logger) *ops.Pipeline {
	box, err := newMailbox(ctx, cfg, log)
	if err != nil {
		log.Warn("mailbox unavailable", zap.Error(err))
	}
	p := ops.NewPipeline(database, cfg, box)
	p.Log = log
	p.Metrics = metrics.New()
	return p
}

// newMailbox picks the JSONL file mailbox when mailbox_file is set, Gmail
// when credentials are present, and nothing otherwise.
func newMailbox(ctx context.Context, cfg *config.Config, log *zap.Logger) (mailbox.Mailbox, error) {
	if path := strings.TrimSpace(cfg.MailboxFile); path != "" {
		return mailbox.NewFile(path), nil
	}
	if !cfg.Gmail.Configured() {
		return nil, nil
	}
	g, err := mailbox.NewGmail(ctx, cfg.Gmail, log)
	if err != nil {
		return nil, err
	}
	return g, nil
}

func warnUnknownDisabled(log *zap.Logger, cfg *config.Config) {
	if unknown := mcp.ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		log.Warn("unknown tools in disabled_tools", zap.Strings("tools", unknown))
	}
	if unknown := mcp.ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		log.Warn("unknown types in disabled_types", zap.Strings("types", unknown),
			zap.Strings("known", mcp.KnownTypes))
	}
}
