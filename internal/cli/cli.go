package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/boylston-chess/bcf-monitor/internal/config"
	"github.com/boylston-chess/bcf-monitor/internal/logger"
	"github.com/boylston-chess/bcf-monitor/internal/monitor"
	"github.com/boylston-chess/bcf-monitor/internal/notifier"
	"github.com/boylston-chess/bcf-monitor/internal/scraper"
	"github.com/boylston-chess/bcf-monitor/internal/storage"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	flagConfig      string
	flagDataDir     string
	flagDaysBefore  int
	flagInclude     string
	flagExclude     string
	flagOnlyChanges bool
	flagEmail       bool
	flagVerbose     bool
)

// NewRootCmd creates the root command with its subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bcf-monitor",
		Short: "Monitor Boylston Chess Foundation events for roster changes",
		Long: `Periodically scrapes the BCF events listing, diffs each event's entry
list against its stored snapshot, and reports registrations, withdrawals and
detail changes to the console and any configured notifiers.

Without a subcommand it runs a single check.`,
		Args:         cobra.NoArgs,
		RunE:         runCheck,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", config.DefaultPath, "Configuration file path")
	pf.StringVar(&flagDataDir, "data-dir", "", "Directory for event snapshots (overrides config)")
	pf.IntVar(&flagDaysBefore, "days-before", -1, "Report window in days (overrides config)")
	pf.StringVar(&flagInclude, "include", "", "Comma-separated keywords an event name must contain (overrides config)")
	pf.StringVar(&flagExclude, "exclude", "", "Comma-separated keywords that exclude an event (overrides config)")
	pf.BoolVar(&flagOnlyChanges, "only-changes", false, "Report only events with changes")
	pf.BoolVar(&flagEmail, "email", false, "Enable email notifications")
	pf.BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(newCheckCmd(), newScheduleCmd(), newPurgeCmd(), newInitConfigCmd())
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run one monitoring pass and report changes",
		RunE:  runCheck,
	}
}

func runCheck(cmd *cobra.Command, _ []string) error {
	m, err := buildMonitor()
	if err != nil {
		return err
	}
	return runOnce(cmd.Context(), m)
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run checks on the configured cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			m, err := buildMonitor()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			c := cron.New()
			if _, err := c.AddFunc(cfg.Schedule, func() {
				if err := runOnce(ctx, m); err != nil {
					logger.Error("scheduled run failed", nil, err)
				}
			}); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
			}

			logger.Info("scheduler started", logger.Fields{"schedule": cfg.Schedule})
			c.Start()
			<-ctx.Done()
			<-c.Stop().Done()
			logger.Info("scheduler stopped", nil)
			return nil
		},
	}
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove snapshots for events whose dates have all passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := storage.New(cfg.DataDir)
			if err != nil {
				return err
			}
			removed, err := store.PurgeExpired(time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired snapshot(s).\n", removed)
			return nil
		},
	}
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Write a starter configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteDefault(flagConfig); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s. Edit it before the first run.\n", flagConfig)
			return nil
		},
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}

	if flagDataDir != "" {
		cfg.DataDir = flagDataDir
	}
	if flagDaysBefore >= 0 {
		cfg.DaysBefore = flagDaysBefore
	}
	if flagInclude != "" {
		cfg.Include = splitKeywords(flagInclude)
	}
	if flagExclude != "" {
		cfg.Exclude = splitKeywords(flagExclude)
	}
	if flagOnlyChanges {
		cfg.OnlyChanges = true
	}
	if flagEmail {
		cfg.Email.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitKeywords(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// buildMonitor wires the configured components together.
func buildMonitor() (*monitor.Monitor, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := logger.LevelInfo
	if flagVerbose {
		level = logger.LevelDebug
	}
	logger.SetDefault(logger.New(level, os.Stderr))

	store, err := storage.New(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	notifiers := []notifier.Notifier{notifier.NewConsole(nil)}
	if cfg.Email.Enabled {
		n, err := notifier.NewEmail(notifier.EmailSettings{
			To:       cfg.Email.To,
			From:     cfg.Email.From,
			SMTPHost: cfg.Email.SMTPHost,
			SMTPPort: cfg.Email.SMTPPort,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
		})
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	if cfg.Telegram.Enabled {
		n, err := notifier.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}
	if cfg.Twitter.Enabled {
		n, err := notifier.NewTwitter()
		if err != nil {
			return nil, err
		}
		notifiers = append(notifiers, n)
	}

	return monitor.New(cfg, scraper.New(cfg.BaseURL), store, notifiers, nil), nil
}

func runOnce(ctx context.Context, m *monitor.Monitor) error {
	sum, err := m.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("check finished", logger.Fields{
		"discovered": sum.Discovered,
		"processed":  sum.Processed,
		"skipped":    sum.Skipped,
		"failed":     sum.Failed,
		"purged":     sum.Purged,
	})
	for _, w := range sum.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return nil
}

// Execute runs the CLI.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
	os.Exit(ExitSuccess)
}
