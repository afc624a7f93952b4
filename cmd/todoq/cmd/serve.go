package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"todoq/internal/config"
	"todoq/internal/shutdown"
	"todoq/internal/stubserver"
	"todoq/internal/utils"
)

// newServeCmd creates the 'serve' subcommand that runs the in-memory collection endpoint
func newServeCmd(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory collection endpoint for local development",
		Long: "serve runs an in-memory implementation of the collection endpoint until\n" +
			"interrupted. Use --latency to watch speculative changes settle.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env.viper.GetString("config"))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			addr := cfg.Serve.Addr
			if cmd.Flags().Changed("addr") {
				addr, _ = cmd.Flags().GetString("addr")
			}
			latency := cfg.GetServeLatency()
			if cmd.Flags().Changed("latency") {
				latency, _ = cmd.Flags().GetDuration("latency")
			}
			seed, _ := cmd.Flags().GetStringSlice("seed")
			return runServe(env, addr, latency, seed)
		},
	}

	cmd.Flags().String("addr", config.DefaultServeAddr, "Address to listen on")
	cmd.Flags().Duration("latency", 0, "Artificial delay before every response (e.g. 300ms)")
	cmd.Flags().StringSlice("seed", nil, "Initial item titles")
	return cmd
}

func runServe(env *environment, addr string, latency time.Duration, seed []string) error {
	logger := utils.GetLogger()
	logger.SetOutput(env.stderr)
	log := logger.Logrus()

	srv := stubserver.New(stubserver.Config{Latency: latency, Seed: seed}, log)

	stop := shutdown.NewManager(log)
	stop.HandleSignals()
	stop.RegisterCleanup("stub server", srv.Shutdown)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(addr)
	}()

	_, _ = fmt.Fprintf(env.stdout, "Serving items at http://%s%s (latency %s). Press Ctrl+C to stop.\n", addr, srv.Path(), latency)

	var serveErr error
	select {
	case serveErr = <-errCh:
		stop.Shutdown()
	case <-stop.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()
	if err := stop.Wait(ctx); err != nil && serveErr == nil {
		serveErr = err
	}
	if serveErr != nil {
		return utils.WrapWithSuggestion(serveErr, "Pick a free address with --addr")
	}

	_, _ = fmt.Fprintf(env.stdout, "Stopped (%s)\n", stop.Reason())
	return nil
}
