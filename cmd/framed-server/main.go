// Package main provides the framed message server daemon.
package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vitalvas/goframed"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	configFile    = kingpin.Flag("config.file", "Path to configuration file.").Default("config.yaml").String()
	listenAddress = kingpin.Flag("web.listen-address", "Address to listen on for telemetry.").Default(":9090").String()
	telemetryPath = kingpin.Flag("web.telemetry-path", "Path under which to expose metrics.").Default("/metrics").String()
	listenAddr    = kingpin.Flag("listen", "Listen address for framed connections (overrides config).").String()
	listenPort    = kingpin.Flag("port", "Listen port for framed connections (overrides config).").Int()
	secret        = kingpin.Flag("secret", "Shared secret (overrides config).").String()
	debug         = kingpin.Flag("debug", "Enable debug logging.").Bool()
)

func main() {
	kingpin.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if *listenAddr != "" {
		cfg.Listen.Addr = *listenAddr
	}
	if *listenPort != 0 {
		cfg.Listen.Port = *listenPort
	}
	if *secret != "" {
		cfg.Auth.Secret = *secret
	}
	if *debug {
		cfg.Log.Level = "debug"
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	opts := []goframed.ServerOption{
		goframed.WithServerLogger(logger),
		goframed.WithServerDebug(cfg.Log.Level == "debug"),
	}

	if cfg.Auth.Secret != "" {
		opts = append(opts, goframed.WithServerSecret(cfg.Auth.Secret))
		if cfg.Auth.Timeout > 0 {
			opts = append(opts, goframed.WithServerAuthTimeout(cfg.Auth.Timeout))
		}
	}
	if len(cfg.AllowedIPs) > 0 {
		opts = append(opts, goframed.WithServerAllowedIPs(cfg.AllowedIPs))
	}
	if cfg.Limits.MaxPayload > 0 {
		opts = append(opts, goframed.WithServerMaxPayloadLength(uint32(cfg.Limits.MaxPayload)))
	}
	if cfg.Limits.AcceptRate > 0 {
		opts = append(opts, goframed.WithServerAcceptRateLimit(cfg.Limits.AcceptRate, cfg.Limits.AcceptBurst))
	}
	if cfg.Limits.ReadTimeout > 0 {
		opts = append(opts, goframed.WithServerReadTimeout(cfg.Limits.ReadTimeout))
	}
	if cfg.Limits.WriteTimeout > 0 {
		opts = append(opts, goframed.WithServerWriteTimeout(cfg.Limits.WriteTimeout))
	}

	var certWatcher *goframed.CertWatcher
	if cfg.TLS.Enabled {
		tlsConfig, watcher, err := buildTLSConfig(cfg, logger)
		if err != nil {
			return fmt.Errorf("tls setup: %w", err)
		}
		certWatcher = watcher
		opts = append(opts,
			goframed.WithServerTLSConfig(tlsConfig),
			goframed.WithServerAcceptInvalidCerts(cfg.TLS.AcceptInvalidCerts),
			goframed.WithServerMutualAuth(cfg.TLS.MutualAuth),
		)
	}

	// The echo handler needs the server; callbacks only fire after
	// Start, so capturing the variable before assignment is safe.
	var server *goframed.Server
	opts = append(opts,
		goframed.WithServerConnectedHandler(func(identity string) {
			logger.Info("client connected", "client", identity)
		}),
		goframed.WithServerDisconnectedHandler(func(identity string) {
			logger.Info("client disconnected", "client", identity)
		}),
		goframed.WithServerMessageHandler(func(identity string, payload []byte) {
			logger.Info("message received", "client", identity, "bytes", len(payload))
			if cfg.Echo {
				if err := server.Send(identity, payload); err != nil {
					logger.Warn("echo failed", "client", identity, "error", err)
				}
			}
		}),
	)

	server, err = goframed.NewServer(cfg.Listen.Addr, cfg.Listen.Port, opts...)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	if err := server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	if certWatcher != nil {
		certWatcher.StartAsync()
		defer certWatcher.Stop()
	}

	prometheus.MustRegister(goframed.NewCollector(server))
	go serveTelemetry(logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func newLogger(cfg *Config) (*slog.Logger, error) {
	var level slog.Level
	switch cfg.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", cfg.Log.Level)
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	return slog.New(handler), nil
}

// buildTLSConfig loads the server identity from either a PKCS#12 file
// or a PEM pair, optionally behind a hot-reloading watcher.
func buildTLSConfig(cfg *Config, logger *slog.Logger) (*tls.Config, *goframed.CertWatcher, error) {
	if cfg.TLS.PKCS12File != "" {
		tlsConfig, err := goframed.NewTLSConfigPKCS12(cfg.TLS.PKCS12File, cfg.TLS.PKCS12Password)
		return tlsConfig, nil, err
	}

	if cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "" {
		return nil, nil, fmt.Errorf("tls enabled but no certificate configured")
	}

	if cfg.TLS.WatchCertificates {
		watcher, err := goframed.NewCertWatcher(cfg.TLS.CertFile, cfg.TLS.KeyFile,
			goframed.WithCertWatcherLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return watcher.TLSConfig(), watcher, nil
	}

	tlsConfig, err := goframed.NewTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	return tlsConfig, nil, err
}

func serveTelemetry(logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(*telemetryPath, promhttp.Handler())
	logger.Info("telemetry listening", "addr", *listenAddress, "path", *telemetryPath)
	if err := http.ListenAndServe(*listenAddress, mux); err != nil {
		logger.Error("telemetry server failed", "error", err)
	}
}
