// Package discovery browses the local network for WLED service
// advertisements and reports each resolved endpoint to a callback.
package discovery

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	serviceName = "_wled._tcp"
	domain      = "local."
)

// Callback receives one discovered endpoint. addr is "host" or "host:port"
// (the port is omitted when the device advertises the default 80); macHint
// is the MAC from the advertisement's TXT metadata, or "" when the
// advertisement carries none. Callbacks must be idempotent: the browser does
// not deduplicate repeated discovery of the same device.
type Callback func(addr, macHint string)

// Browser periodically queries mDNS for WLED devices.
type Browser struct {
	logger   *slog.Logger
	interval time.Duration
	callback Callback
}

// NewBrowser creates a browser invoking cb for each discovered advertisement.
// The interval must be at least 5 seconds; shorter values are raised to 5s.
func NewBrowser(logger *slog.Logger, interval time.Duration, cb Callback) *Browser {
	if interval < 5*time.Second {
		interval = 5 * time.Second
		logger.Warn("discovery: interval too short, using minimum of 5 seconds")
	}
	return &Browser{
		logger:   logger,
		interval: interval,
		callback: cb,
	}
}

// Scan starts browsing in the background and returns immediately. Browsing
// repeats every interval until ctx is cancelled or a query fails; on failure
// the scan is cancelled and restarting is the caller's responsibility.
func (b *Browser) Scan(ctx context.Context) {
	go func() {
		if err := b.run(ctx); err != nil {
			b.logger.Error("discovery: scan cancelled", "error", err)
		}
	}()
}

func (b *Browser) run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	if err := b.query(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := b.query(); err != nil {
				return err
			}
		}
	}
}

// query performs a single discovery run lasting slightly less than the
// interval so runs never overlap.
func (b *Browser) query() error {
	entriesCh := make(chan *mdns.ServiceEntry, 16)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entriesCh {
			addr, mac, ok := resolveEntry(entry)
			if !ok {
				b.logger.Debug("discovery: skipping unresolvable entry", "name", entryName(entry))
				continue
			}
			b.logger.Debug("discovery: resolved advertisement", "addr", addr, "mac", mac)
			b.callback(addr, mac)
		}
	}()

	params := mdns.DefaultParams(serviceName)
	params.Domain = domain
	params.Entries = entriesCh
	params.Timeout = b.interval - time.Second
	params.DisableIPv6 = true
	params.Logger = log.New(os.Stderr, "mdns: ", log.LstdFlags)

	// The query itself is bounded by params.Timeout.
	err := mdns.Query(params)
	close(entriesCh)
	<-done
	if err != nil {
		return fmt.Errorf("mdns query failed: %w", err)
	}
	return nil
}

func entryName(entry *mdns.ServiceEntry) string {
	if entry == nil {
		return ""
	}
	return entry.Name
}

// resolveEntry turns a service entry into a dialable address plus the
// optional MAC hint from TXT metadata.
func resolveEntry(entry *mdns.ServiceEntry) (addr, mac string, ok bool) {
	if entry == nil || entry.AddrV4 == nil || entry.AddrV4.IsUnspecified() {
		return "", "", false
	}

	host := entry.AddrV4.String()
	if entry.Port != 0 && entry.Port != 80 {
		addr = net.JoinHostPort(host, fmt.Sprintf("%d", entry.Port))
	} else {
		addr = host
	}

	for _, field := range entry.InfoFields {
		if v, found := strings.CutPrefix(field, "mac="); found {
			mac = strings.ToLower(v)
			break
		}
	}
	return addr, mac, true
}
