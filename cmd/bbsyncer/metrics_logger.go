package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/bbsyncer/internal/metrics"
)

// startMetricsLogger periodically logs a metrics snapshot, for
// deployments that don't scrape Prometheus and just tail journald.
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
					"frames_decoded", snap.FramesDecoded,
					"checksum_errors", snap.ChecksumErr,
					"flash_bytes", snap.FlashBytes,
					"retries", snap.Retries,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
