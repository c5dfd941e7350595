package client

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newTestServer creates a test HTTP server with the given handler map.
func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *HTTPClient) {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := NewHTTP(testLogger(), server.URL)
	return server, client
}

func jsonHandler(statusCode int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		if body != nil {
			json.NewEncoder(w).Encode(body)
		}
	}
}

// === ListDevices ===

func TestHTTPClient_ListDevices(t *testing.T) {
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/devices": jsonHandler(200, []map[string]any{
			{"mac": "aabbccddee01", "address": "10.0.0.5", "name": "Porch", "status": "connected"},
		}),
	})

	devices, err := client.ListDevices(false)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "aabbccddee01", devices[0].MAC)
	assert.Equal(t, "Porch", devices[0].Name)
}

func TestHTTPClient_ListDevices_AllFlag(t *testing.T) {
	var gotAll string
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/devices": func(w http.ResponseWriter, r *http.Request) {
			gotAll = r.URL.Query().Get("all")
			jsonHandler(200, []map[string]any{})(w, r)
		},
	})

	devices, err := client.ListDevices(true)
	require.NoError(t, err)
	assert.Equal(t, "true", gotAll)
	assert.NotNil(t, devices)
	assert.Empty(t, devices)
}

func TestHTTPClient_ListDevices_Error(t *testing.T) {
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/devices": jsonHandler(500, map[string]any{"detail": "registry unavailable"}),
	})

	_, err := client.ListDevices(false)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "registry unavailable")
}

// === GetDevice ===

func TestHTTPClient_GetDevice(t *testing.T) {
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/devices/aabbccddee01": jsonHandler(200, map[string]any{
			"mac": "aabbccddee01", "address": "10.0.0.5", "version": "0.14.0",
		}),
	})

	dev, err := client.GetDevice("aabbccddee01")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", dev.Address)
	assert.Equal(t, "0.14.0", dev.Version)
}

func TestHTTPClient_GetDevice_NotFound(t *testing.T) {
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/devices/deadbeef0000": jsonHandler(404, map[string]any{"detail": "device not found"}),
	})

	_, err := client.GetDevice("deadbeef0000")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

// === AddDevice ===

func TestHTTPClient_AddDevice(t *testing.T) {
	var gotBody map[string]any
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/devices": func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			jsonHandler(201, map[string]any{"mac": "aabbccddee02", "address": "10.0.0.9"})(w, r)
		},
	})

	dev, err := client.AddDevice("10.0.0.9")
	require.NoError(t, err)
	assert.Equal(t, "aabbccddee02", dev.MAC)
	assert.Equal(t, "10.0.0.9", gotBody["address"])
}

// === UpdateDevice ===

func TestHTTPClient_UpdateDevice(t *testing.T) {
	var gotBody map[string]any
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"PATCH /api/v1/devices/aabbccddee01": func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			jsonHandler(200, map[string]any{"mac": "aabbccddee01", "custom_name": "Garden"})(w, r)
		},
	})

	dev, err := client.UpdateDevice("aabbccddee01", map[string]any{"custom_name": "Garden"})
	require.NoError(t, err)
	assert.Equal(t, "Garden", dev.CustomName)
	assert.Equal(t, "Garden", gotBody["custom_name"])
}

// === DeleteDevice ===

func TestHTTPClient_DeleteDevice(t *testing.T) {
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"DELETE /api/v1/devices/aabbccddee01": jsonHandler(204, nil),
	})

	assert.NoError(t, client.DeleteDevice("aabbccddee01"))
}

// === SetDeviceState ===

func TestHTTPClient_SetDeviceState(t *testing.T) {
	var gotBody map[string]any
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/devices/aabbccddee01/state": func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			jsonHandler(200, map[string]any{"status": "sent"})(w, r)
		},
	})

	err := client.SetDeviceState("aabbccddee01", map[string]any{"on": true, "brightness": 128})
	require.NoError(t, err)
	assert.Equal(t, true, gotBody["on"])
	assert.Equal(t, float64(128), gotBody["brightness"])
}

func TestHTTPClient_SetDeviceState_Unavailable(t *testing.T) {
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/devices/aabbccddee01/state": jsonHandler(503, map[string]any{"detail": "device not connected"}),
	})

	err := client.SetDeviceState("aabbccddee01", map[string]any{"on": true})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "device not connected")
}

// === Fleet ===

func TestHTTPClient_GetFleetStatus(t *testing.T) {
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/fleet": jsonHandler(200, map[string]any{"paused": true, "devices": 3}),
	})

	status, err := client.GetFleetStatus()
	require.NoError(t, err)
	assert.True(t, status.Paused)
	assert.Equal(t, 3, status.Devices)
}

func TestHTTPClient_PauseResumeFleet(t *testing.T) {
	var calls []string
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/fleet/pause": func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, "pause")
			jsonHandler(200, map[string]any{"status": "paused"})(w, r)
		},
		"POST /api/v1/fleet/resume": func(w http.ResponseWriter, r *http.Request) {
			calls = append(calls, "resume")
			jsonHandler(200, map[string]any{"status": "running"})(w, r)
		},
	})

	require.NoError(t, client.PauseFleet())
	require.NoError(t, client.ResumeFleet())
	assert.Equal(t, []string{"pause", "resume"}, calls)
}

// === GetVersion ===

func TestHTTPClient_GetVersion(t *testing.T) {
	_, client := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/version": jsonHandler(200, map[string]any{
			"version": "1.2.3", "commit": "abc123", "build_date": "2025-06-01",
		}),
	})

	info, err := client.GetVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", info.Version)
	assert.Equal(t, "abc123", info.Commit)
}

// === URL normalization ===

func TestNewHTTP_NormalizesBaseURL(t *testing.T) {
	c := NewHTTP(testLogger(), "127.0.0.1:8123/")
	assert.Equal(t, "http://127.0.0.1:8123", c.baseURL)

	c = NewHTTP(testLogger(), "https://wledd.local")
	assert.Equal(t, "https://wledd.local", c.baseURL)
}
