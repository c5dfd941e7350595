// Package firstcontact turns a raw device address into a registry write by
// asking the device for its durable identity (MAC) exactly once.
package firstcontact

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wledfleet/wledd/internal/errors"
	"github.com/wledfleet/wledd/internal/registry"
	"github.com/wledfleet/wledd/pkg/wled"
)

// Resolver resolves addresses to device identities and upserts the registry.
// Safe for concurrent use across MACs; concurrent writes for the same MAC
// are last-write-wins.
type Resolver struct {
	logger  *slog.Logger
	store   *registry.Store
	timeout time.Duration

	// newClient is swapped in tests.
	newClient func(addr string) *wled.Client
}

// NewResolver creates a resolver. timeout bounds the self-description fetch.
func NewResolver(store *registry.Store, logger *slog.Logger, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := &Resolver{
		logger:  logger,
		store:   store,
		timeout: timeout,
	}
	r.newClient = func(addr string) *wled.Client {
		return wled.NewClient(addr, logger, &http.Client{Timeout: timeout})
	}
	return r
}

// NormalizeAddress strips the scheme and trailing slashes from a raw address
// and validates that what remains is a dialable host or host:port.
func NormalizeAddress(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	addr = strings.TrimPrefix(addr, "http://")
	addr = strings.TrimPrefix(addr, "https://")
	addr = strings.TrimRight(addr, "/")
	if addr == "" {
		return "", errors.InvalidAddressf("empty address")
	}
	u, err := url.Parse("http://" + addr)
	if err != nil || u.Host != addr || u.Hostname() == "" {
		return "", errors.InvalidAddressf("malformed address %q", raw)
	}
	return addr, nil
}

// ResolveAndUpsert fetches the device's self-description at rawAddress and
// creates or patches its registry record. The write is skipped entirely when
// nothing changed, so repeated discovery of a known device produces no
// registry churn.
//
// Failure taxonomy: ErrInvalidAddress for malformed input, ErrNoIdentity
// when the device reports no MAC, ErrNetwork for fetch failures.
func (r *Resolver) ResolveAndUpsert(ctx context.Context, rawAddress string) (registry.DeviceRecord, error) {
	addr, err := NormalizeAddress(rawAddress)
	if err != nil {
		return registry.DeviceRecord{}, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	info, err := r.newClient(addr).GetInfo(fetchCtx)
	if err != nil {
		return registry.DeviceRecord{}, err
	}

	mac := registry.NormalizeMAC(info.Mac)
	if mac == "" {
		return registry.DeviceRecord{}, errors.NoIdentityf("device at %s reported no MAC", addr)
	}

	rec, exists := r.store.Get(mac)
	if !exists {
		rec = registry.DeviceRecord{
			MAC:          mac,
			Address:      addr,
			OriginalName: info.Name,
			Hidden:       false,
			Branch:       registry.BranchUnknown,
			LastSeen:     time.Now().UTC(),
		}
		if err := r.store.Save(rec); err != nil {
			return registry.DeviceRecord{}, err
		}
		r.logger.Info("firstcontact: registered new device", "mac", mac, "addr", addr, "name", info.Name)
		return rec, nil
	}

	// Patch only what drifted; an unchanged record is not rewritten.
	changed := false
	if rec.Address != addr {
		rec.Address = addr
		changed = true
	}
	if info.Name != "" && rec.OriginalName != info.Name {
		rec.OriginalName = info.Name
		changed = true
	}
	if !changed {
		r.logger.Debug("firstcontact: device unchanged", "mac", mac, "addr", addr)
		return rec, nil
	}

	rec.LastSeen = time.Now().UTC()
	if err := r.store.Save(rec); err != nil {
		return registry.DeviceRecord{}, err
	}
	r.logger.Info("firstcontact: patched device", "mac", mac, "addr", addr)
	return rec, nil
}

// FastUpdateAddress patches a known device's address without contacting it.
// It reports whether a record with the MAC hint exists, letting the caller
// skip the full resolve path when it does. A record with a matching address
// is left untouched. Existence of the MAC is trusted as-is; identity is not
// re-verified against the device.
func (r *Resolver) FastUpdateAddress(macHint, addr string) bool {
	mac := registry.NormalizeMAC(macHint)
	if mac == "" {
		return false
	}
	rec, ok := r.store.Get(mac)
	if !ok {
		return false
	}
	if rec.Address == addr {
		return true
	}

	rec.Address = addr
	rec.LastSeen = time.Now().UTC()
	if err := r.store.Save(rec); err != nil {
		r.logger.Error("firstcontact: fast address update failed", "mac", mac, "addr", addr, "error", err)
		return true
	}
	r.logger.Info("firstcontact: fast address update", "mac", mac, "addr", addr)
	return true
}
