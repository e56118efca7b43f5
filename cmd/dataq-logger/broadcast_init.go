package main

import (
	"log/slog"

	"github.com/omnisurfer/dataq-logger/internal/broadcast"
)

func initBroadcast(cfg *appConfig, l *slog.Logger) *broadcast.Hub {
	h := broadcast.New()
	switch cfg.broadcastPolicy {
	case "drop":
		h.Policy = broadcast.PolicyDrop
	case "kick":
		h.Policy = broadcast.PolicyKick
	default:
		l.Warn("unknown_broadcast_policy", "policy", cfg.broadcastPolicy, "used", "drop")
		h.Policy = broadcast.PolicyDrop
	}
	policyStr := map[broadcast.BackpressurePolicy]string{broadcast.PolicyDrop: "drop", broadcast.PolicyKick: "kick"}[h.Policy]
	l.Info("build_info", "version", version, "commit", commit, "date", date)
	l.Info("broadcast_config", "policy", policyStr, "buffer", cfg.broadcastBuffer)
	return h
}
