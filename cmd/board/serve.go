package main

import (
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/boardcore/internal/api"
	"github.com/zulandar/boardcore/internal/audit"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		noAudit    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serves the card API until interrupted. When audit.schedule is set the
invariant auditor runs on that schedule in the same process.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, !noAudit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (overrides http.port)")
	cmd.Flags().BoolVar(&noAudit, "no-audit", false, "do not run the scheduled auditor")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, withAudit bool) error {
	e, err := openEnv(cmd, configPath)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if withAudit && e.cfg.Audit.Schedule != "" {
		sched, err := audit.NewScheduler(e.db, e.cfg.Audit.Schedule, e.logger)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(ctx)
		}()
	}

	if port == 0 {
		port = e.cfg.HTTP.Port
	}
	err = api.Start(ctx, api.StartOpts{
		Cards:  e.cards,
		Boards: e.boards,
		DB:     e.db,
		Port:   port,
		Logger: e.logger,
		Out:    cmd.OutOrStdout(),
	})

	// A listener failure must still stop the scheduler.
	stop()
	wg.Wait()
	return err
}
