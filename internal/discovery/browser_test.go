package discovery

import (
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
)

func TestNewBrowserEnforcesMinimumInterval(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(discard{}, nil))
	b := NewBrowser(logger, time.Second, func(addr, mac string) {})
	assert.Equal(t, 5*time.Second, b.interval)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestResolveEntry(t *testing.T) {
	tests := []struct {
		name     string
		entry    *mdns.ServiceEntry
		wantAddr string
		wantMAC  string
		wantOK   bool
	}{
		{
			name:   "nil entry",
			entry:  nil,
			wantOK: false,
		},
		{
			name:   "no address",
			entry:  &mdns.ServiceEntry{Name: "wled._wled._tcp.local.", Port: 80},
			wantOK: false,
		},
		{
			name: "default port omitted",
			entry: &mdns.ServiceEntry{
				AddrV4: net.ParseIP("192.168.1.40"),
				Port:   80,
			},
			wantAddr: "192.168.1.40",
			wantOK:   true,
		},
		{
			name: "non-default port kept",
			entry: &mdns.ServiceEntry{
				AddrV4: net.ParseIP("192.168.1.40"),
				Port:   8080,
			},
			wantAddr: "192.168.1.40:8080",
			wantOK:   true,
		},
		{
			name: "mac hint from TXT",
			entry: &mdns.ServiceEntry{
				AddrV4:     net.ParseIP("192.168.1.41"),
				Port:       80,
				InfoFields: []string{"mac=AABBCCDDEEFF", "version=0.14.0"},
			},
			wantAddr: "192.168.1.41",
			wantMAC:  "aabbccddeeff",
			wantOK:   true,
		},
		{
			name: "no mac in TXT",
			entry: &mdns.ServiceEntry{
				AddrV4:     net.ParseIP("192.168.1.42"),
				Port:       80,
				InfoFields: []string{"version=0.14.0"},
			},
			wantAddr: "192.168.1.42",
			wantOK:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, mac, ok := resolveEntry(tt.entry)
			assert.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			assert.Equal(t, tt.wantAddr, addr)
			assert.Equal(t, tt.wantMAC, mac)
		})
	}
}
