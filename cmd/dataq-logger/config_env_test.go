package main

import (
	"os"
	"testing"
	"time"
)

func TestApplyEnvOverrides_Basic(t *testing.T) {
	base := baseConfig()

	os.Setenv("DATAQ_LOGGER_ADDR", "10.1.2.3")
	os.Setenv("DATAQ_LOGGER_RATE_HZ", "2500")
	os.Setenv("DATAQ_LOGGER_COMMAND_TIMEOUT", "500ms")
	os.Setenv("DATAQ_LOGGER_DISCOVER", "true")
	t.Cleanup(func() {
		os.Unsetenv("DATAQ_LOGGER_ADDR")
		os.Unsetenv("DATAQ_LOGGER_RATE_HZ")
		os.Unsetenv("DATAQ_LOGGER_COMMAND_TIMEOUT")
		os.Unsetenv("DATAQ_LOGGER_DISCOVER")
	})

	if err := applyEnvOverrides(base, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base.loggerAddr != "10.1.2.3" {
		t.Fatalf("expected loggerAddr override, got %q", base.loggerAddr)
	}
	if base.rateHz != 2500 {
		t.Fatalf("expected rateHz 2500, got %d", base.rateHz)
	}
	if base.commandTimeout != 500*time.Millisecond {
		t.Fatalf("expected commandTimeout 500ms, got %v", base.commandTimeout)
	}
	if !base.discoveryEnable {
		t.Fatalf("expected discoveryEnable true")
	}
}

func TestApplyEnvOverrides_FlagPrecedence(t *testing.T) {
	base := baseConfig()
	base.loggerAddr = "192.168.0.100"
	os.Setenv("DATAQ_LOGGER_ADDR", "10.1.2.3")
	t.Cleanup(func() { os.Unsetenv("DATAQ_LOGGER_ADDR") })

	if err := applyEnvOverrides(base, map[string]struct{}{"logger-addr": {}}); err != nil {
		t.Fatalf("err: %v", err)
	}
	if base.loggerAddr != "192.168.0.100" {
		t.Fatalf("expected loggerAddr unchanged, got %q", base.loggerAddr)
	}
}

func TestApplyEnvOverrides_BadInt(t *testing.T) {
	base := baseConfig()
	os.Setenv("DATAQ_LOGGER_RATE_HZ", "notint")
	t.Cleanup(func() { os.Unsetenv("DATAQ_LOGGER_RATE_HZ") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad integer")
	}
}

func TestApplyEnvOverrides_BadDuration(t *testing.T) {
	base := baseConfig()
	os.Setenv("DATAQ_LOGGER_KEEPALIVE_INTERVAL", "notaduration")
	t.Cleanup(func() { os.Unsetenv("DATAQ_LOGGER_KEEPALIVE_INTERVAL") })
	if err := applyEnvOverrides(base, map[string]struct{}{}); err == nil {
		t.Fatalf("expected error for bad duration")
	}
}
