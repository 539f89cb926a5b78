package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/net/netutil"

	"github.com/ppiankov/incidentlens/internal/api"
	"github.com/ppiankov/incidentlens/internal/cache"
	"github.com/ppiankov/incidentlens/internal/llm"
	"github.com/ppiankov/incidentlens/internal/model"
	"github.com/ppiankov/incidentlens/internal/pipeline"
	"github.com/ppiankov/incidentlens/internal/store"
	"github.com/ppiankov/incidentlens/internal/worker"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the incident API over HTTP",
	Long: `Serve loads the dataset once and exposes:

  GET  /columns                 list dataset columns
  GET  /unique-values?column=X  distinct values of a column
  POST /filter                  filter, aggregate and optionally analyze
  POST /ai-interpret-filters    turn a question into filters
  GET  /healthz                 dataset and provider status

A dataset that fails to load does not stop the server; data endpoints
report 503 until the file is fixed and the server restarted.

Example:
  incidentlens serve --data data/FY20.xlsx --addr :8000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8000)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	p := openPipeline(cmd.Context(), cfg, pipeline.NewProvider(cfg))
	if err := p.Ready(); err != nil {
		log.Printf("serve: %v", err)
	}

	opts := api.Options{
		Limiter: worker.NewLimiter(cfg.Server.AIRateLimit.RequestsPerSecond, cfg.Server.AIRateLimit.BurstSize),
	}
	if cfg.Cache.Enabled {
		opts.Cache = cache.NewMemoryCache(cache.NoExpiration, 10*time.Minute)
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewServer(p, opts).Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Server.Addr, err)
	}
	if cfg.Server.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.Server.MaxConnections)
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("serve: listening on %s (dataset=%s, llm=%s)", ln.Addr(), cfg.Dataset.Path, providerLabel(p))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-shutdown:
	}

	log.Printf("serve: shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("serve: shutdown error: %w", err)
	}

	log.Printf("serve: stopped")
	return nil
}

// openPipeline loads the configured dataset and builds a pipeline around
// it. A load failure is kept inside the pipeline.
func openPipeline(ctx context.Context, cfg *model.Config, provider llm.Provider) *pipeline.Pipeline {
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	table, err := store.Load(ctx, afero.NewOsFs(), cfg.Dataset.Path, store.Options{
		Sheet: cfg.Dataset.Sheet,
		Table: cfg.Dataset.Table,
	})
	if err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Loaded %d rows from %s in %v\n", table.Len(), cfg.Dataset.Path, time.Since(start).Round(time.Millisecond))
	}
	return pipeline.NewPipeline(cfg, table, err, provider)
}

func providerLabel(p *pipeline.Pipeline) string {
	if name := p.Health().LLMProvider; name != "" {
		return name
	}
	return "disabled"
}
