// Command hostagent runs the management agent. It answers hostlink data
// requests with this machine's facts or with a JSON/YAML data file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hostlink/internal/agent"
	"hostlink/internal/config"
	"hostlink/internal/logging"
	"hostlink/internal/metrics"

	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "config file (default: search standard locations)")
	listen := flag.String("listen", "", "listen address, overrides agent.listen_addr")
	token := flag.String("token", "", "required client token, overrides agent.token")
	dataFile := flag.String("data", "", "serve this JSON or YAML file instead of local facts")
	watch := flag.Bool("watch", false, "cache the data file and reload it when it changes")
	metricsAddr := flag.String("metrics", "", "serve prometheus metrics on this address")
	flag.Parse()

	if err := run(*configPath, *listen, *token, *dataFile, *watch, *metricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "hostagent: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, listen, token, dataFile string, watch bool, metricsAddr string) error {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, configPath, err = config.LoadFromPath(configPath)
	} else {
		cfg, configPath, err = config.Load()
	}
	if err != nil {
		return err
	}

	logging.Install(cfg.LoggingConfig(logging.ProfileRuntime))
	log := logging.For("hostagent")
	if configPath != "" {
		log.Info().Str("path", configPath).Msg("config loaded")
	}

	if listen != "" {
		cfg.Agent.ListenAddr = listen
	}
	if token != "" {
		cfg.Agent.Token = token
	}
	if dataFile != "" {
		cfg.Agent.DataFile = dataFile
	}
	if watch {
		cfg.Agent.WatchData = true
	}
	if metricsAddr != "" {
		cfg.Agent.MetricsAddr = metricsAddr
	}

	agentCfg, err := cfg.AgentConfig()
	if err != nil {
		return err
	}
	if agentCfg.Token == "" {
		log.Warn().Msg("no agent token configured; any client may connect")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var metricsSrv *http.Server
	if cfg.Agent.MetricsAddr != "" {
		metricsSrv = startMetrics(cfg.Agent.MetricsAddr, log)
	}

	source := cfg.AgentSource()
	if cached, ok := source.(*agent.CachedFileSource); ok {
		go func() {
			if err := cached.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("data file watch stopped; serving the cached copy")
			}
		}()
	}

	srv := agent.New(agentCfg, source)
	err = srv.ListenAndServe(ctx)

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info().Msg("agent stopped")
	return nil
}

func startMetrics(addr string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server")
		}
	}()
	return server
}
