package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/wesm/regcat/internal/api"
	"github.com/wesm/regcat/internal/query"
	"github.com/wesm/regcat/internal/server"
	"github.com/wesm/regcat/internal/store"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve [port] [delay]",
	Short: "Run the catalog query server",
	Long: `Run the catalog query server in the foreground.

Each client connection carries one search or detail request and is served on
its own goroutine with its own read-only catalog connection, so a slow or
failing request never holds up another.

Arguments:
  port    TCP port to listen on (default: [server] port, 5500)
  delay   CPU time to burn before answering each request, in whole seconds
          or as a duration such as 250ms (default: [server] delay, 0)

When [server] status_port is set, an HTTP endpoint on that port serves
/health, /api/v1/stats, and JSON views of search and detail.

Use Ctrl+C to stop the server gracefully.`,
	Args: argsRange(0, 2),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		port, err := parsePort(args[0])
		if err != nil {
			return err
		}
		cfg.Server.Port = port
	}
	if len(args) > 1 {
		delay, err := parseDelay(args[1])
		if err != nil {
			return err
		}
		cfg.Server.Delay.Duration = delay
	}

	dbPath := cfg.Data.DatabasePath
	stats, err := catalogStats(dbPath)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	logger.Info("catalog ready", "path", dbPath, "classes", stats.ClassCount, "courses", stats.CourseCount)

	open := func(context.Context) (query.Engine, error) {
		return store.OpenEngine(dbPath)
	}

	srv := server.New(server.Options{
		Addr:          cfg.ListenAddr(),
		Delay:         cfg.Server.Delay.Duration,
		MaxConcurrent: cfg.Server.MaxConcurrent,
		RateLimitQPS:  cfg.Server.RateLimitQPS,
		ReadTimeout:   cfg.Server.ReadTimeout.Duration,
	}, open, logger)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})

	if addr := cfg.StatusAddr(); addr != "" {
		status := api.NewServer(api.Options{Addr: addr}, open, srv, func() (*store.Stats, error) {
			return catalogStats(dbPath)
		}, logger)
		g.Go(status.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return status.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped", "handled", srv.Stats().Accepted)
	return nil
}

// catalogStats opens the catalog just long enough to count its rows.
func catalogStats(dbPath string) (*store.Stats, error) {
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.GetStats()
}
