package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"peerbus/pkg/config"
	"peerbus/pkg/driver"
	"peerbus/pkg/observability"
	"peerbus/pkg/protocol"

	_ "peerbus/pkg/transport/mem"
	_ "peerbus/pkg/transport/quic"
	_ "peerbus/pkg/transport/tcp"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return 1
	}

	logger, err := observability.SetupLogger(cfg.Log)
	if err != nil {
		_, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
		return 1
	}
	defer func() { _ = logger.Sync() }()

	zap.L().Info("peerbus-node started", zap.String("node", cfg.NodeName))
	zap.L().Info("effective configuration", zap.Any("config", cfg))

	d, err := driver.New(driver.Options{
		Protocol:       cfg.Protocol,
		SendTimeout:    cfg.SendTimeout(),
		ReceiveTimeout: cfg.ReceiveTimeout(),
		Logger:         logger,
	})
	if err != nil {
		zap.L().Error("failed to construct driver", zap.Error(err))
		return 1
	}
	defer func() { _ = d.Close() }()

	for kind, addr := range d.Address() {
		zap.L().Info("listening", zap.Stringer("channel", kind), zap.String("addr", addr))
	}

	peers, err := cfg.PeerTable()
	if err != nil {
		zap.L().Error("invalid peer table", zap.Error(err))
		return 1
	}
	if len(peers) > 0 {
		if err := d.Connect(peers); err != nil {
			zap.L().Error("failed to connect peers", zap.Error(err))
			return 1
		}
		zap.L().Info("connected peers", zap.Int("count", len(peers)))
	}

	// Receive loop: log every inbound message until the driver closes.
	go func() {
		for msg, err := range d.Receive(true) {
			if err != nil {
				var rerr *driver.ReceiveError
				if errors.As(err, &rerr) && errors.Is(rerr, driver.ErrClosed) {
					return
				}
				zap.L().Error("receive failed", zap.Error(err))
				return
			}
			zap.L().Info("message received",
				zap.String("tag", msg.Tag),
				zap.String("source", msg.Source),
				zap.Int("payload_bytes", len(msg.Payload)))
		}
	}()

	// Heartbeat broadcast keeps subscribers aware of this node.
	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				msg := protocol.NewMessage("heartbeat", cfg.NodeName, "", nil)
				if err := d.Broadcast(msg); err != nil {
					zap.L().Warn("heartbeat broadcast failed", zap.Error(err))
				}
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	s := <-sig
	close(stop)
	zap.L().Info("shutting down", zap.String("signal", s.String()))
	return 0
}
