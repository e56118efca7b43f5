package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/omnisurfer/dataq-logger/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"samples_received", snap.SamplesReceived,
					"samples_filled", snap.SamplesFilled,
					"packets_received", snap.PacketsReceived,
					"packets_dropped", snap.PacketsDropped,
					"commands_sent", snap.CommandsSent,
					"command_timeouts", snap.CommandTimeouts,
					"keepalives_sent", snap.KeepalivesSent,
					"queue_depth_max", snap.QueueDepthMax,
					"queue_depth_avg", snap.QueueDepthAvg,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
