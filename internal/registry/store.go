// Package registry persists the known device set and notifies the rest of
// the daemon about changes through the event bus.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/wledfleet/wledd/internal/errors"
	"github.com/wledfleet/wledd/internal/events"
)

// storeFile is the on-disk shape of the registry.
type storeFile struct {
	Devices []DeviceRecord `json:"devices"`
}

// Store is a JSON-file-backed device registry. All access goes through the
// mutex; writes persist the whole set before the in-memory copy is updated,
// so a failed write never leaves the two halves diverged.
type Store struct {
	logger *slog.Logger
	bus    *events.Bus
	path   string

	mu      sync.Mutex
	devices map[string]DeviceRecord
}

// NewStore opens (or creates) the registry at path. Change notifications are
// published on bus as device.added / device.updated / device.removed events
// carrying the affected record.
func NewStore(path string, logger *slog.Logger, bus *events.Bus) (*Store, error) {
	s := &Store{
		logger:  logger,
		bus:     bus,
		path:    path,
		devices: make(map[string]DeviceRecord),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	logger.Info("registry: loaded", "path", path, "devices", len(s.devices))
	return s, nil
}

// load reads the registry file. Duplicate MACs keep the first record seen;
// later duplicates are logged and dropped, never merged.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read registry %s: %w", s.path, err)
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse registry %s: %w", s.path, err)
	}

	for _, rec := range file.Devices {
		mac := NormalizeMAC(rec.MAC)
		if mac == "" {
			s.logger.Warn("registry: dropping record without MAC", "address", rec.Address)
			continue
		}
		if _, exists := s.devices[mac]; exists {
			s.logger.Warn("registry: dropping duplicate record", "mac", mac, "address", rec.Address)
			continue
		}
		rec.MAC = mac
		if rec.Branch == "" {
			rec.Branch = BranchUnknown
		}
		s.devices[mac] = rec
	}
	return nil
}

// persist writes the full device set to disk via a temp file rename.
// Caller must hold s.mu.
func (s *Store) persist() error {
	records := make([]DeviceRecord, 0, len(s.devices))
	for _, rec := range s.devices {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].MAC < records[j].MAC })

	data, err := json.MarshalIndent(storeFile{Devices: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace registry: %w", err)
	}
	return nil
}

// FetchAll returns a copy of every record, sorted by MAC.
func (s *Store) FetchAll() []DeviceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]DeviceRecord, 0, len(s.devices))
	for _, rec := range s.devices {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].MAC < records[j].MAC })
	return records
}

// Get returns the record for a MAC, if present.
func (s *Store) Get(mac string) (DeviceRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.devices[NormalizeMAC(mac)]
	return rec, ok
}

// Save creates or replaces the record keyed by its MAC. On a persistence
// failure the in-memory set is rolled back, no event is published, and the
// error is returned.
func (s *Store) Save(rec DeviceRecord) error {
	mac := NormalizeMAC(rec.MAC)
	if mac == "" {
		return errors.InvalidInputf("device record has no MAC")
	}
	rec.MAC = mac
	if rec.Branch == "" {
		rec.Branch = BranchUnknown
	}

	s.mu.Lock()
	prev, existed := s.devices[mac]
	s.devices[mac] = rec
	if err := s.persist(); err != nil {
		// Roll back rather than leaving memory ahead of disk.
		if existed {
			s.devices[mac] = prev
		} else {
			delete(s.devices, mac)
		}
		s.mu.Unlock()
		return errors.LogErrorAndReturn(s.logger, err, "registry: save failed", "mac", mac)
	}
	s.mu.Unlock()

	if existed {
		s.logger.Debug("registry: device updated", "mac", mac, "address", rec.Address)
		s.bus.Publish(events.NewEvent(events.DeviceUpdated, rec))
	} else {
		s.logger.Info("registry: device added", "mac", mac, "address", rec.Address)
		s.bus.Publish(events.NewEvent(events.DeviceAdded, rec))
	}
	return nil
}

// Delete removes the record for a MAC. Deleting an absent MAC returns
// ErrNotFound.
func (s *Store) Delete(mac string) error {
	mac = NormalizeMAC(mac)

	s.mu.Lock()
	rec, existed := s.devices[mac]
	if !existed {
		s.mu.Unlock()
		return errors.NotFoundf("device %s", mac)
	}
	delete(s.devices, mac)
	if err := s.persist(); err != nil {
		s.devices[mac] = rec
		s.mu.Unlock()
		return errors.LogErrorAndReturn(s.logger, err, "registry: delete failed", "mac", mac)
	}
	s.mu.Unlock()

	s.logger.Info("registry: device removed", "mac", mac)
	s.bus.Publish(events.NewEvent(events.DeviceRemoved, rec))
	return nil
}
