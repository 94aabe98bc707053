package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moxieprotocol/config"
	"moxieprotocol/core/events"
	"moxieprotocol/indexer"
	"moxieprotocol/observability/logging"
	"moxieprotocol/observability/telemetry"
	"moxieprotocol/protocol"
	"moxieprotocol/rpc"
	"moxieprotocol/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "moxied: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.LoggingOptions("moxied"))

	shutdownTelemetry, err := telemetry.Init(context.Background(), cfg.TelemetryOptions("moxied"))
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	pcfg, err := cfg.ProtocolConfig()
	if err != nil {
		return fmt.Errorf("protocol config: %w", err)
	}
	pcfg.Logger = logger

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := storage.Open(cfg.Storage.Engine, cfg.StatePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	p, err := protocol.New(db, pcfg)
	if err != nil {
		db.Close()
		return fmt.Errorf("start protocol: %w", err)
	}
	// Close also releases db.
	defer p.Close()
	hub := rpc.NewEventHub()
	p.Subscribe(eventLogger{logger: logger})
	p.Subscribe(hub)

	addrs := p.Addresses()
	logger.Info("protocol ready",
		slog.String("token", addrs.MoxieToken.Hex()),
		slog.String("curve", addrs.BondingCurve.Hex()),
		slog.String("factory", addrs.SubjectFactory.Hex()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srvCfg := rpc.ServerConfig{
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: cfg.RPC.RequestsPerMinute,
			Burst:             cfg.RPC.Burst,
		},
		ReadTimeout:  time.Duration(cfg.RPC.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.RPC.WriteTimeoutSecs) * time.Second,
		Logger:       logger,
		Events:       hub,
	}

	var indexerDone chan error
	if dsn := cfg.Indexer.DSN; dsn != "" {
		idx, err := openIndexer(dsn, logger)
		if err != nil {
			return err
		}
		p.Subscribe(idx)
		srvCfg.Trades = idx
		indexerDone = make(chan error, 1)
		go func() { indexerDone <- idx.Run(ctx) }()
	}

	if err := rpc.NewServer(p, srvCfg).Serve(ctx, cfg.RPC.Address); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serve: %w", err)
	}
	if indexerDone != nil {
		stop()
		if err := <-indexerDone; err != nil {
			logger.Warn("indexer stopped", slog.Any("error", err))
		}
	}
	logger.Info("shutdown complete")
	return nil
}

func openIndexer(dsn string, logger *slog.Logger) (*indexer.Indexer, error) {
	db, err := indexer.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open indexer: %w", err)
	}
	idx, err := indexer.New(db, logger)
	if err != nil {
		return nil, fmt.Errorf("migrate indexer: %w", err)
	}
	return idx, nil
}

// eventLogger writes committed protocol events to the process log.
type eventLogger struct {
	logger *slog.Logger
}

func (l eventLogger) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok || payload.Event() == nil {
		l.logger.Debug("event", slog.String("type", evt.EventType()))
		return
	}
	raw := payload.Event()
	attrs := make([]any, 0, len(raw.Attributes))
	for k, v := range raw.Attributes {
		attrs = append(attrs, slog.String(k, v))
	}
	l.logger.Debug("event", slog.String("type", raw.Type), slog.Group("attributes", attrs...))
}
