// Package discovery is a best-effort mDNS browse helper for loggers
// announcing themselves on the LAN ahead of a configured connect. It
// browses for a service instead of advertising one, since a logger (not
// this host) is the side being discovered.
package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service type a DI-4108-E class logger advertises.
// Discovery is an enrichment only — the protocol always addresses a
// configured IP, so a caller unable or unwilling to browse can skip this
// package entirely.
const ServiceType = "_dataqlogger._udp"

// Candidate is one discovered logger announcement.
type Candidate struct {
	Instance string
	Host     string
	AddrV4   []string
	AddrV6   []string
	Port     int
	Text     []string
}

// Discover browses the local network for timeout and returns every
// candidate seen. A zero or negative timeout defaults to 3 seconds. Errors
// from zeroconf itself are returned; an empty result with a nil error means
// the browse completed cleanly but nothing answered.
func Discover(ctx context.Context, timeout time.Duration) ([]Candidate, error) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: new resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 16)
	var found []Candidate
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			found = append(found, Candidate{
				Instance: e.Instance,
				Host:     e.HostName,
				AddrV4:   ipsToStrings(e.AddrIPv4),
				AddrV6:   ipsToStrings(e.AddrIPv6),
				Port:     e.Port,
				Text:     e.Text,
			})
		}
	}()

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := resolver.Browse(browseCtx, ServiceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("discovery: browse: %w", err)
	}

	<-browseCtx.Done()
	close(entries)
	<-done
	return found, nil
}

func ipsToStrings(ips []net.IP) []string {
	out := make([]string, len(ips))
	for i, ip := range ips {
		out[i] = ip.String()
	}
	return out
}
