package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"f0oster/oktaldap/config"
	"f0oster/oktaldap/directory"
	"f0oster/oktaldap/history"
	"f0oster/oktaldap/okta"
	"f0oster/oktaldap/reload"
	"f0oster/oktaldap/server"
	"f0oster/oktaldap/web"
)

func main() {
	configPath := flag.String("config", "oktaldap.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	ctx := context.Background()

	client := okta.NewClient(okta.Config{
		URL:     cfg.Okta.URL,
		Token:   cfg.Okta.Token,
		Timeout: cfg.Timeout(),
	}, logger)

	builder := directory.NewBuilder(directory.Templates{
		UserDN:          cfg.Okta.UserDN,
		GroupDN:         cfg.Okta.GroupDN,
		UserAttributes:  cfg.Okta.UserAttributes,
		GroupAttributes: cfg.Okta.GroupAttributes,
	}, logger)

	build := func(ctx context.Context) (*directory.Snapshot, error) {
		dir, err := client.BuildDirectory(ctx)
		if err != nil {
			return nil, err
		}
		return builder.Build(dir)
	}

	var recorder reload.RunRecorder
	if cfg.History.DSN != "" {
		store, err := history.Connect(ctx, cfg.History.DSN, logger)
		if err != nil {
			logger.Error("failed to connect to history database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer store.Close()
		recorder = store
	}

	coordinator := reload.New(build, cfg.ReloadInterval(), logger, recorder)
	if err := coordinator.Start(ctx); err != nil {
		logger.Error("initial directory load failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	go coordinator.Run(ctx)

	if cfg.Web.Listen != "" {
		statusServer := web.NewServer(coordinator, cfg.Web.Listen, logger)
		go func() {
			if err := statusServer.Start(); err != nil {
				logger.Error("status server failed", slog.String("error", err.Error()))
			}
		}()
	}

	admin, err := cfg.AdminIdentity()
	if err != nil {
		logger.Error("invalid admin identity", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handler := server.NewHandler(coordinator, client, admin, cfg.BindCacheTTL(), logger)
	logger.Info("ldap server listening", slog.String("addr", cfg.Listen))
	if err := handler.Serve(cfg.Listen); err != nil {
		logger.Error("ldap server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
