package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonathan/research-agent/internal/observability"
	"github.com/jonathan/research-agent/internal/server"
	"github.com/jonathan/research-agent/internal/server/ratelimit"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes the /ask endpoints for running research questions.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config, default 8080)")
	rootCmd.AddCommand(serveCmd)
}

// newServer builds the HTTP server and its metrics registry from configuration.
func newServer(cmd *cobra.Command) (*server.Server, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.Verbose)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(reg)

	p, closeFn, err := buildPipeline(cmd.Context(), cfg, logger, metrics)
	if err != nil {
		return nil, nil, err
	}

	srv, err := server.New(server.Config{
		Port:           cfg.Port,
		Researcher:     p,
		Logger:         logger,
		RateLimit:      ratelimit.LoadConfig(cfg.RateLimitPerMinute),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to create server: %w", err)
	}
	return srv, closeFn, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	srv, closeFn, err := newServer(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	return srv.Start()
}
