package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/omnisurfer/dataq-logger/internal/broadcast"
	"github.com/omnisurfer/dataq-logger/internal/discovery"
	"github.com/omnisurfer/dataq-logger/internal/metrics"
	"github.com/omnisurfer/dataq-logger/internal/session"
	"github.com/omnisurfer/dataq-logger/internal/udpsock"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("dataq-logger %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(1)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	if cfg.discoveryEnable {
		found, err := discovery.Discover(ctx, cfg.discoveryWait)
		if err != nil {
			l.Warn("discovery_failed", "error", err)
		} else if len(found) > 0 {
			l.Info("discovery_found", "count", len(found), "first_host", found[0].Host)
		} else {
			l.Info("discovery_found_none")
		}
	}

	scanList, err := parseScanList(cfg.scanListSpec)
	if err != nil {
		l.Error("scan_list_parse_error", "error", err)
		return
	}

	transport, err := udpsock.Dial(udpsock.Config{
		LoggerAddr:          cfg.loggerAddr,
		DeviceCommandPort:   cfg.deviceCommandPort,
		DeviceDiscoveryPort: cfg.deviceDiscoveryPort,
		ClientCommandPort:   cfg.clientCommandPort,
		ClientDataPort:      cfg.clientDataPort,
		RecvBufBytes:        cfg.recvBufBytes,
	})
	if err != nil {
		l.Error("transport_dial_error", "error", err)
		return
	}

	hub := initBroadcast(cfg, l)
	sink := newRingSink(10000)
	sub := broadcast.NewSubscriber(cfg.broadcastBuffer)
	hub.Subscribe(sub)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sink.Run(ctx, sub)
	}()

	sess := session.New(
		session.WithTransport(transport),
		session.WithLogger(l),
		session.WithCommandTimeout(cfg.commandTimeout),
		session.WithKeepaliveInterval(cfg.keepaliveInterval),
		session.WithBroadcast(hub),
		session.WithConnect(cfg.clientIP, cfg.deviceDiscoveryPort, 1, 0),
		session.WithOnGap(func(order uint32, missing int, cumulativeMissing uint64) {
			l.Warn("gap_detected", "order", order, "missing", missing, "cumulative_missing", cumulativeMissing)
		}),
	)

	if err := sess.Bind(ctx); err != nil {
		l.Error("bind_error", "error", err)
		return
	}
	if err := sess.ConfigureAndConnect(ctx, scanList, cfg.rateHz); err != nil {
		l.Error("configure_error", "error", err)
		return
	}
	if err := sess.Start(ctx); err != nil {
		l.Error("start_error", "error", err)
		return
	}
	l.Info("streaming_started", "rate_hz", cfg.rateHz, "scan_list", cfg.scanListSpec)

	metrics.SetReadinessFunc(func() bool {
		return sess.State() == session.StateStreaming && ctx.Err() == nil
	})
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := sess.Stop(shutdownCtx); err != nil {
		l.Warn("stop_error", "error", err)
	}
	if err := sess.Disconnect(shutdownCtx); err != nil {
		l.Warn("disconnect_error", "error", err)
	}

	cancel()
	wg.Wait()
}
