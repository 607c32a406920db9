package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/wesm/regcat/internal/config"
	"github.com/wesm/regcat/internal/remote"
)

var (
	cfgFile string
	homeDir string
	verbose bool
	cfg     *config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "regcat",
	Short: "Registrar class catalog server and client",
	Long: `regcat serves a read-only registrar class catalog over TCP and provides
clients for searching it: an interactive terminal UI and one-shot search and
detail commands.

Configuration is read from config.toml in the regcat home directory
(~/.regcat, or $REGCAT_HOME). Positional host, port, and delay arguments
override the configured values.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}))

		var err error
		cfg, err = config.Load(cfgFile, homeDir)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command with a background context.
// Prefer ExecuteContext for signal-aware execution.
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with the given context,
// enabling graceful shutdown when the context is cancelled.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// usageError marks invalid command-line input.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// IsUsageError reports whether err came from invalid arguments or flags.
func IsUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}

// argsRange is cobra.RangeArgs reporting failures as usage errors.
func argsRange(lo, hi int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.RangeArgs(lo, hi)(cmd, args); err != nil {
			return &usageError{err: fmt.Errorf("%w\n\nUsage: %s", err, cmd.UseLine())}
		}
		return nil
	}
}

// parsePort parses a TCP port argument.
func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return 0, usagef("invalid port %q: must be an integer from 1 to 65535", s)
	}
	return port, nil
}

// parseDelay parses a delay argument: whole seconds, or a duration such as "250ms".
func parseDelay(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		if secs < 0 {
			return 0, usagef("invalid delay %q: must not be negative", s)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, usagef("invalid delay %q: use seconds or a duration like 250ms", s)
	}
	return d, nil
}

// newClient builds a remote client from config, with optional positional
// [host] [port] overrides.
func newClient(args []string) (*remote.Client, error) {
	host, port := cfg.Client.Host, cfg.Client.Port
	if len(args) > 0 {
		host = args[0]
	}
	if len(args) > 1 {
		p, err := parsePort(args[1])
		if err != nil {
			return nil, err
		}
		port = p
	}
	return remote.New(remote.Config{
		Host:           host,
		Port:           port,
		DialTimeout:    cfg.Client.DialTimeout.Duration,
		ReadTimeout:    cfg.Client.ReadTimeout.Duration,
		RequestTimeout: cfg.Client.RequestTimeout.Duration,
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.regcat/config.toml)")
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "home directory (overrides REGCAT_HOME)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})
}
