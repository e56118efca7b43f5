package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/omnisurfer/dataq-logger/internal/scanlist"
	"github.com/omnisurfer/dataq-logger/internal/wire"
)

type appConfig struct {
	loggerAddr          string
	deviceCommandPort   int
	deviceDiscoveryPort int
	clientCommandPort   int
	clientDataPort      int
	recvBufBytes        int
	clientIP            string

	scanListSpec string
	rateHz       int

	commandTimeout    time.Duration
	keepaliveInterval time.Duration

	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration

	broadcastBuffer int
	broadcastPolicy string

	discoveryEnable bool
	discoveryWait   time.Duration
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	loggerAddr := flag.String("logger-addr", "192.168.0.100", "Logger device IP or hostname")
	deviceCmdPort := flag.Int("device-command-port", 51235, "Device command port")
	deviceDiscPort := flag.Int("device-discovery-port", 1235, "Device discovery port (carried into CONNECT's disc_remote_port operand)")
	clientCmdPort := flag.Int("client-command-port", 1427, "Local client command source port")
	clientDataPort := flag.Int("client-data-port", 1234, "Local client data/response port")
	recvBuf := flag.Int("recv-buffer-bytes", 4<<20, "Best-effort receive buffer size requested on the data socket")
	clientIP := flag.String("client-ip", "", "This host's IP, as seen by the logger, sent as CONNECT's payload so the device knows where to stream UDP data back to (required)")

	scanListSpec := flag.String("scan-list", "AI1:10V0,AI2:10V0", "Comma-separated channel:range entries, e.g. AI1:10V0,AI2:5V0,DI1:10V0")
	rateHz := flag.Int("rate-hz", 1000, "Sample rate in Hz (must be one of rateplan's supported rates)")

	commandTimeout := flag.Duration("command-timeout", 2*time.Second, "Command/response round-trip deadline")
	keepaliveInterval := flag.Duration("keepalive-interval", 6*time.Second, "Keepalive send cadence while streaming (device-side keepalive timeout is fixed at 8s, configured separately during connect)")

	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters")

	broadcastBuffer := flag.Int("broadcast-buffer", 256, "Per-subscriber broadcast buffer (batches)")
	broadcastPolicy := flag.String("broadcast-policy", "drop", "Backpressure policy: drop|kick")

	discoveryEnable := flag.Bool("discover", false, "Browse mDNS for loggers before connecting and log what answers (the connection always uses logger-addr)")
	discoveryWait := flag.Duration("discover-timeout", 3*time.Second, "How long to browse before giving up")

	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.loggerAddr = *loggerAddr
	cfg.deviceCommandPort = *deviceCmdPort
	cfg.deviceDiscoveryPort = *deviceDiscPort
	cfg.clientCommandPort = *clientCmdPort
	cfg.clientDataPort = *clientDataPort
	cfg.recvBufBytes = *recvBuf
	cfg.clientIP = *clientIP
	cfg.scanListSpec = *scanListSpec
	cfg.rateHz = *rateHz
	cfg.commandTimeout = *commandTimeout
	cfg.keepaliveInterval = *keepaliveInterval
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.broadcastBuffer = *broadcastBuffer
	cfg.broadcastPolicy = *broadcastPolicy
	cfg.discoveryEnable = *discoveryEnable
	cfg.discoveryWait = *discoveryWait

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open sockets — only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.broadcastPolicy {
	case "drop", "kick":
	default:
		return fmt.Errorf("invalid broadcast-policy: %s", c.broadcastPolicy)
	}
	if c.broadcastBuffer <= 0 {
		return fmt.Errorf("broadcast-buffer must be > 0 (got %d)", c.broadcastBuffer)
	}
	if c.commandTimeout <= 0 {
		return fmt.Errorf("command-timeout must be > 0")
	}
	if c.keepaliveInterval <= 0 {
		return fmt.Errorf("keepalive-interval must be > 0")
	}
	if c.loggerAddr == "" {
		return errors.New("logger-addr must not be empty")
	}
	if c.clientIP == "" {
		return errors.New("client-ip must not be empty (the logger needs it to know where to stream data back to)")
	}
	if _, err := parseScanList(c.scanListSpec); err != nil {
		return fmt.Errorf("invalid scan-list: %w", err)
	}
	return nil
}

// applyEnvOverrides maps DATAQ_LOGGER_* environment variables onto cfg
// unless the corresponding flag was explicitly set (flag wins).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	str := func(flagName, env string, dst *string) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			*dst = v
		}
	}
	intv := func(flagName, env string, dst *int) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	durv := func(flagName, env string, dst *time.Duration) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid %s: %w", env, err)
			}
		}
	}
	boolv := func(flagName, env string, dst *bool) {
		if _, ok := set[flagName]; ok {
			return
		}
		if v, ok := get(env); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				*dst = true
			case "0", "false", "no", "off":
				*dst = false
			}
		}
	}

	str("logger-addr", "DATAQ_LOGGER_ADDR", &c.loggerAddr)
	intv("device-command-port", "DATAQ_LOGGER_DEVICE_COMMAND_PORT", &c.deviceCommandPort)
	intv("device-discovery-port", "DATAQ_LOGGER_DEVICE_DISCOVERY_PORT", &c.deviceDiscoveryPort)
	intv("client-command-port", "DATAQ_LOGGER_CLIENT_COMMAND_PORT", &c.clientCommandPort)
	intv("client-data-port", "DATAQ_LOGGER_CLIENT_DATA_PORT", &c.clientDataPort)
	intv("recv-buffer-bytes", "DATAQ_LOGGER_RECV_BUFFER_BYTES", &c.recvBufBytes)
	str("client-ip", "DATAQ_LOGGER_CLIENT_IP", &c.clientIP)
	str("scan-list", "DATAQ_LOGGER_SCAN_LIST", &c.scanListSpec)
	intv("rate-hz", "DATAQ_LOGGER_RATE_HZ", &c.rateHz)
	durv("command-timeout", "DATAQ_LOGGER_COMMAND_TIMEOUT", &c.commandTimeout)
	durv("keepalive-interval", "DATAQ_LOGGER_KEEPALIVE_INTERVAL", &c.keepaliveInterval)
	str("log-format", "DATAQ_LOGGER_LOG_FORMAT", &c.logFormat)
	str("log-level", "DATAQ_LOGGER_LOG_LEVEL", &c.logLevel)
	str("metrics-addr", "DATAQ_LOGGER_METRICS_ADDR", &c.metricsAddr)
	durv("log-metrics-interval", "DATAQ_LOGGER_LOG_METRICS_INTERVAL", &c.logMetricsEvery)
	intv("broadcast-buffer", "DATAQ_LOGGER_BROADCAST_BUFFER", &c.broadcastBuffer)
	str("broadcast-policy", "DATAQ_LOGGER_BROADCAST_POLICY", &c.broadcastPolicy)
	boolv("discover", "DATAQ_LOGGER_DISCOVER", &c.discoveryEnable)
	durv("discover-timeout", "DATAQ_LOGGER_DISCOVER_TIMEOUT", &c.discoveryWait)

	return firstErr
}

// rangeByName maps the short range labels accepted in -scan-list to their
// wire.RangeTag, matching the device's documented full-scale options.
var rangeByName = map[string]wire.RangeTag{
	"10V0": wire.RangePN10V0,
	"5V0":  wire.RangePN5V0,
	"2V0":  wire.RangePN2V0,
	"1V0":  wire.RangePN1V0,
	"0V5":  wire.RangePN0V5,
	"0V2":  wire.RangePN0V2,
}

var channelByName = map[string]scanlist.ChannelID{
	"AI1": scanlist.Analog1,
	"AI2": scanlist.Analog2,
	"AI3": scanlist.Analog3,
	"AI4": scanlist.Analog4,
	"AI5": scanlist.Analog5,
	"AI6": scanlist.Analog6,
	"AI7": scanlist.Analog7,
	"AI8": scanlist.Analog8,
	"DI1": scanlist.Digital1,
	"DI2": scanlist.Digital2,
}

// parseScanList parses a comma-separated "channel:range" spec such as
// "AI1:10V0,AI2:5V0,DI1:10V0" into a validated scanlist.List.
func parseScanList(spec string) (scanlist.List, error) {
	parts := strings.Split(spec, ",")
	slots := make([]scanlist.Slot, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		fields := strings.SplitN(p, ":", 2)
		if len(fields) != 2 {
			return scanlist.List{}, fmt.Errorf("entry %q: want channel:range", p)
		}
		ch, ok := channelByName[strings.ToUpper(fields[0])]
		if !ok {
			return scanlist.List{}, fmt.Errorf("entry %q: unknown channel %q", p, fields[0])
		}
		rng, ok := rangeByName[strings.ToUpper(fields[1])]
		if !ok {
			return scanlist.List{}, fmt.Errorf("entry %q: unknown range %q", p, fields[1])
		}
		slots = append(slots, scanlist.Slot{Channel: ch, Range: rng})
	}
	return scanlist.New(slots)
}
