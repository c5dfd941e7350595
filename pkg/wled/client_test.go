package wled

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wledfleet/wledd/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestClientGetInfo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/json/info", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Kitchen Strip","ver":"0.14.0","mac":"aabbccddeeff","wifi":{"signal":72}}`))
	}))
	defer srv.Close()

	client := NewClient(strings.TrimPrefix(srv.URL, "http://"), testLogger())
	info, err := client.GetInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Kitchen Strip", info.Name)
	assert.Equal(t, "0.14.0", info.Ver)
	assert.Equal(t, "aabbccddeeff", info.Mac)
	assert.Equal(t, 72, info.Wifi.Signal)
}

func TestClientGetInfo_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(strings.TrimPrefix(srv.URL, "http://"), testLogger())
	_, err := client.GetInfo(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsNetwork(err))
}

func TestClientGetInfo_DecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := NewClient(strings.TrimPrefix(srv.URL, "http://"), testLogger())
	_, err := client.GetInfo(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsNetwork(err))
}

func TestClientGetInfo_Unreachable(t *testing.T) {
	client := NewClient("127.0.0.1:1", testLogger())
	_, err := client.GetInfo(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsNetwork(err))
}
