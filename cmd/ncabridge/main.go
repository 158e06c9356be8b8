package main

import (
	"bufio"
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"github.com/yndnr/ncabridge-go/internal/agent/connection"
	"github.com/yndnr/ncabridge-go/internal/agent/signer"
	"github.com/yndnr/ncabridge-go/internal/core/domain"
	"github.com/yndnr/ncabridge-go/internal/infra/buildinfo"
	"github.com/yndnr/ncabridge-go/internal/infra/confloader"
	"github.com/yndnr/ncabridge-go/internal/infra/shutdown"
	"github.com/yndnr/ncabridge-go/internal/infra/tlsroots"
	"github.com/yndnr/ncabridge-go/internal/server/bridge"
	"github.com/yndnr/ncabridge-go/internal/server/config"
	"github.com/yndnr/ncabridge-go/internal/server/httpserver"
	"github.com/yndnr/ncabridge-go/internal/telemetry/logger"
	"github.com/yndnr/ncabridge-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		hashToken   = flag.Bool("hash-token", false, "Read an API token from stdin and print its argon2id hash")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("ncabridge %s\n", buildinfo.String())
		return nil
	}
	if *hashToken {
		return printTokenHash(os.Stdin, os.Stdout)
	}

	loader := newLoader(*configFile)
	cfg, err := loadConfig(loader)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  os.Stdout,
		Service: "ncabridge",
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	log.Info("starting ncabridge",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	agentTLS, err := tlsroots.AgentTLSConfig(tlsroots.AgentOptions{
		CAFiles:            cfg.Agent.CAFiles,
		CADir:              cfg.Agent.CADir,
		ServerName:         cfg.Agent.ServerName,
		PinSHA256:          cfg.Agent.PinSHA256,
		InsecureSkipVerify: cfg.Agent.InsecureSkipVerify,
	})
	if err != nil {
		return fmt.Errorf("agent tls: %w", err)
	}
	switch {
	case cfg.Agent.PinSHA256 != "":
		log.Info("agent certificate pinned", "sha256", cfg.Agent.PinSHA256)
	case cfg.Agent.InsecureSkipVerify:
		log.Warn("agent certificate verification is disabled")
	}

	reg := metric.NewRegistry()

	mgr := connection.NewManager(connection.Options{
		Endpoint:         cfg.Agent.Endpoint,
		TLSConfig:        agentTLS,
		HandshakeTimeout: cfg.Agent.HandshakeTimeout,
		ReadLimit:        cfg.Agent.ReadLimit,
		Logger:           log,
		OnStateChange: func(s connection.State) {
			log.Info("agent connection state changed", "state", s.String())
		},
	})
	reg.MustRegister(metric.NewCollector(mgr, buildinfo.Version, buildinfo.Commit))

	b := bridge.New(mgr, signer.Options{
		Timeout:      cfg.Agent.SignTimeout,
		SingleFlight: cfg.Agent.SingleFlight,
		Logger:       log,
		Metrics:      reg,
	})

	var tokenHash *domain.TokenHash
	if cfg.Security.APITokenHash != "" {
		if tokenHash, err = domain.ParseTokenHash(cfg.Security.APITokenHash); err != nil {
			return fmt.Errorf("security.api_token_hash: %w", err)
		}
	}

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Bridge:             b,
		Logger:             log,
		Metrics:            reg,
		MetricsHandler:     reg.Handler(),
		APIToken:           cfg.Security.APIToken,
		APITokenHash:       tokenHash,
		CORSAllowedOrigins: cfg.Server.HTTP.CORSOrigins,
		RateLimit:          cfg.Security.RateLimit,
		RateBurst:          cfg.Security.RateBurst,
		MaxBodyBytes:       cfg.Server.HTTP.MaxBodyBytes,
	})

	shutdownHandler := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout, log)

	var serverTLS *tls.Config
	if cfg.Server.HTTP.TLSCertFile != "" {
		certWatcher, err := tlsroots.NewWatcher(cfg.Server.HTTP.TLSCertFile, cfg.Server.HTTP.TLSKeyFile,
			tlsroots.WithLogger(log))
		if err != nil {
			return fmt.Errorf("server tls: %w", err)
		}
		certWatcher.StartAsync()
		shutdownHandler.OnReload("tls certificate", certWatcher.Reload)
		shutdownHandler.OnShutdown("tls watcher", func(context.Context) error {
			certWatcher.Stop()
			return nil
		})
		serverTLS = tlsroots.ServerTLSConfig(certWatcher)
	}

	ln, err := net.Listen("tcp", cfg.Server.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.HTTP.Addr, err)
	}

	httpServer := httpserver.New(cfg.Server.HTTP.Addr, router, httpserver.Options{
		TLSConfig:   serverTLS,
		ReadTimeout: cfg.Server.HTTP.ReadTimeout,
	})

	// Hooks run in reverse: stop accepting requests first, then fail
	// whatever is still waiting on the agent.
	shutdownHandler.OnShutdown("bridge", func(context.Context) error {
		b.Close()
		return nil
	})
	shutdownHandler.OnShutdown("http server", httpServer.Shutdown)

	reloadConfig := func() error {
		next, err := loadConfig(loader)
		if err != nil {
			return err
		}
		from := logger.GetLevel()
		if err := logger.SetLevel(next.Log.Level); err != nil {
			return err
		}
		if to := logger.GetLevel(); to != from {
			log.Info("log level changed", "from", from, "to", to)
		}
		return nil
	}
	shutdownHandler.OnReload("config", reloadConfig)

	if *configFile != "" {
		watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
		if err != nil {
			return fmt.Errorf("config watcher: %w", err)
		}
		if err := watcher.Watch(*configFile); err != nil {
			_ = watcher.Stop()
			return fmt.Errorf("config watcher: %w", err)
		}
		watcher.OnChange(func(path string) {
			if err := reloadConfig(); err != nil {
				log.Error("config reload failed, keeping current settings", "file", path, "error", err)
			}
		})
		watcher.StartAsync()
		shutdownHandler.OnShutdown("config watcher", func(context.Context) error {
			return watcher.Stop()
		})
	}

	go func() {
		log.Info("HTTP server listening",
			"addr", ln.Addr().String(),
			"tls", serverTLS != nil,
			"agent", cfg.Agent.Endpoint)
		if err := httpServer.Serve(ln); err != nil {
			log.Error("HTTP server error", "error", err)
			shutdownHandler.Trigger()
		}
	}()

	log.Info("bridge started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(context.Background()); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("bridge stopped gracefully")
	return nil
}

func newLoader(configFile string) *confloader.Loader {
	opts := []confloader.Option{
		confloader.WithListKeys("server.http.cors_origins", "agent.ca_files"),
	}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}
	return confloader.NewLoader(opts...)
}

// loadConfig reads defaults, the file and the environment, in that order.
func loadConfig(loader *confloader.Loader) (*config.ServerConfig, error) {
	cfg := config.Default()
	if err := loader.Reload(cfg); err != nil {
		return nil, err
	}
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// printTokenHash hashes the first line of r for security.api_token_hash.
func printTokenHash(r io.Reader, w io.Writer) error {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("read token: %w", err)
	}
	hash, err := domain.HashAPIToken(strings.TrimSpace(line))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}
