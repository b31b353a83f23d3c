// serve.go implements the "mabel serve" command: the HTTP API plus the job
// workers, stopped together on SIGINT or SIGTERM.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mabel-stories/mabel/internal/ai"
	"github.com/mabel-stories/mabel/internal/api"
	"github.com/mabel-stories/mabel/internal/jobs"
	"github.com/mabel-stories/mabel/internal/log"
	"github.com/mabel-stories/mabel/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and background job workers",
	RunE:  runServe,
}

var serveAddr string

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	apiKey := cfg.APIKey()
	if apiKey == "" {
		fmt.Fprintf(os.Stderr, "Warning: %s is not set; generation jobs will fail as unauthorized.\n", cfg.AI.APIKeyEnv)
		a.logger.Emit(log.LogEvent{Event: log.EventWarning, Reason: cfg.AI.APIKeyEnv + " not set"})
	}

	fs, err := storage.NewFS(cfg.Storage.Root, cfg.Server.MaxUploadBytes)
	if err != nil {
		return err
	}

	dispatcher := jobs.NewDispatcher(a.store, a.logger, jobs.Options{
		Workers:      cfg.Jobs.Workers,
		PollInterval: cfg.PollInterval(),
		MaxAttempts:  cfg.Jobs.MaxAttempts,
	})
	handlers := &jobs.Handlers{
		Store:              a.store,
		Generator:          ai.NewClient(cfg.AI, apiKey),
		Storage:            fs,
		Logger:             a.logger,
		QuestionsPerModule: cfg.AI.QuestionsPerModule,
	}
	handlers.Register(dispatcher)

	server := api.NewServer(api.Deps{
		Store:          a.store,
		Jobs:           dispatcher,
		Storage:        fs,
		Logger:         a.logger,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(ctx, addr,
			time.Duration(cfg.Server.ReadTimeout)*time.Second,
			time.Duration(cfg.Server.WriteTimeout)*time.Second)
	})
	g.Go(func() error {
		return dispatcher.Run(ctx)
	})

	fmt.Printf("Mabel listening on http://%s (log: %s)\n", addr, a.logger.Path())
	return g.Wait()
}
