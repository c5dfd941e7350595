package registry

import (
	"strings"
	"time"
)

// Branch is the firmware update channel a device follows.
type Branch string

const (
	// BranchUnknown means the device has not been classified yet.
	BranchUnknown Branch = "unknown"
	// BranchStable follows tagged stable releases.
	BranchStable Branch = "stable"
	// BranchBeta also accepts prerelease builds.
	BranchBeta Branch = "beta"
)

// NormalizeBranch maps arbitrary input to a valid Branch.
func NormalizeBranch(s string) Branch {
	switch Branch(strings.ToLower(s)) {
	case BranchStable:
		return BranchStable
	case BranchBeta:
		return BranchBeta
	default:
		return BranchUnknown
	}
}

// DeviceRecord is the persisted identity and configuration of one
// controller, keyed by MAC address.
type DeviceRecord struct {
	MAC          string    `json:"mac"`
	Address      string    `json:"address"`
	CustomName   string    `json:"custom_name,omitempty"`
	OriginalName string    `json:"original_name,omitempty"`
	Hidden       bool      `json:"hidden"`
	Branch       Branch    `json:"branch"`
	SkipTag      string    `json:"skip_tag,omitempty"`
	LastSeen     time.Time `json:"last_seen"`
}

// DisplayName prefers the user-assigned name over the device-reported one.
func (r DeviceRecord) DisplayName() string {
	if r.CustomName != "" {
		return r.CustomName
	}
	if r.OriginalName != "" {
		return r.OriginalName
	}
	return r.MAC
}

// NormalizeMAC lowercases a MAC and strips separators so that
// "AA:BB:CC:DD:EE:FF" and "aabbccddeeff" key the same record.
func NormalizeMAC(mac string) string {
	mac = strings.ToLower(strings.TrimSpace(mac))
	mac = strings.ReplaceAll(mac, ":", "")
	mac = strings.ReplaceAll(mac, "-", "")
	return mac
}
