package cmd

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/wesm/regcat/internal/bridge"
	"github.com/wesm/regcat/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [host] [port]",
	Short: "Open the interactive catalog browser",
	Long: `Open an interactive terminal UI for searching the class catalog.

Every edit to the Dept, Number, Area, or Title fields sends a new search to
the server in the background; results always reflect the latest input, even
when earlier responses arrive late.

Navigation:
  Tab/Shift+Tab  Move between search fields and the class list
  ↑/↓            Move the selection
  PgUp/PgDn      Page up/down
  Enter          Show class details
  Esc            Close a dialog
  Ctrl+C         Quit

With --verbose, debug logs are written to tui.log in the regcat home
directory, since the terminal is in use by the UI.`,
	Args: argsRange(0, 2),
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return errors.New("tui requires an interactive terminal; use 'regcat search' for scripted queries")
	}

	client, err := newClient(args)
	if err != nil {
		return err
	}

	tlog, closeLog, err := tuiLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	b := bridge.New(ctx, client, tlog)
	model := tui.New(b, tui.Options{
		Version:      Version,
		Server:       client.Addr(),
		PollInterval: cfg.Client.PollInterval.Duration,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, runErr := p.Run()

	// Abort in-flight round trips before waiting on their workers.
	cancel()
	b.Wait()
	return runErr
}

// tuiLogger keeps log output off the terminal the UI is drawing on.
func tuiLogger() (*slog.Logger, func(), error) {
	if !verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	if err := os.MkdirAll(cfg.HomeDir, 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(filepath.Join(cfg.HomeDir, "tui.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	l := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return l, func() { f.Close() }, nil
}
