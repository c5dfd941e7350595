package fleet

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wledfleet/wledd/internal/errors"
	"github.com/wledfleet/wledd/internal/events"
	"github.com/wledfleet/wledd/internal/firstcontact"
	"github.com/wledfleet/wledd/internal/registry"
	"github.com/wledfleet/wledd/internal/updates"
	"github.com/wledfleet/wledd/pkg/wled"
)

const waitFor = 2 * time.Second
const tick = 10 * time.Millisecond

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeSocket records lifecycle calls; tests drive inbound traffic by
// invoking the captured handlers, the way a real socket's goroutines would.
type fakeSocket struct {
	mu          sync.Mutex
	addr        string
	connects    int
	disconnects int
	sent        []wled.StatePatch

	onState  wled.StateHandler
	onStatus wled.StatusHandler
}

func (f *fakeSocket) Connect()    { f.mu.Lock(); f.connects++; f.mu.Unlock() }
func (f *fakeSocket) Disconnect() { f.mu.Lock(); f.disconnects++; f.mu.Unlock() }

func (f *fakeSocket) SendState(p wled.StatePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return nil
}

func (f *fakeSocket) Status() wled.Status    { return wled.StatusDisconnected }
func (f *fakeSocket) LastState() *wled.State { return nil }

func (f *fakeSocket) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeSocket) disconnectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnects
}

func (f *fakeSocket) sentPatches() []wled.StatePatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]wled.StatePatch(nil), f.sent...)
}

type socketRig struct {
	mu    sync.Mutex
	socks []*fakeSocket
}

func (r *socketRig) factory(addr string, onState wled.StateHandler, onStatus wled.StatusHandler) deviceSocket {
	f := &fakeSocket{addr: addr, onState: onState, onStatus: onStatus}
	r.mu.Lock()
	r.socks = append(r.socks, f)
	r.mu.Unlock()
	return f
}

func (r *socketRig) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.socks)
}

// byAddr returns the most recently created socket for an address.
func (r *socketRig) byAddr(addr string) *fakeSocket {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.socks) - 1; i >= 0; i-- {
		if r.socks[i].addr == addr {
			return r.socks[i]
		}
	}
	return nil
}

func newTestController(t *testing.T) (*Controller, *registry.Store, *socketRig, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	store, err := registry.NewStore(filepath.Join(t.TempDir(), "devices.json"), testLogger(), bus)
	require.NoError(t, err)
	resolver := firstcontact.NewResolver(store, testLogger(), time.Second)
	c := NewController(store, resolver, updates.NewChecker(), bus, testLogger(), Config{
		LastSeenGranularity: time.Hour, // keep heartbeats from re-touching last-seen mid-test
	})
	rig := &socketRig{}
	c.newSocket = rig.factory
	c.Start()
	t.Cleanup(c.Stop)
	return c, store, rig, bus
}

func saveDevice(t *testing.T, store *registry.Store, mac, addr string) registry.DeviceRecord {
	t.Helper()
	rec := registry.DeviceRecord{MAC: mac, Address: addr, Branch: registry.BranchUnknown}
	require.NoError(t, store.Save(rec))
	got, ok := store.Get(mac)
	require.True(t, ok)
	return got
}

func waitForSocket(t *testing.T, rig *socketRig, addr string) *fakeSocket {
	t.Helper()
	require.Eventually(t, func() bool { return rig.byAddr(addr) != nil }, waitFor, tick,
		"no connection created for %s", addr)
	return rig.byAddr(addr)
}

func TestReconcileCreatesConnectionPerRecord(t *testing.T) {
	c, store, rig, _ := newTestController(t)

	saveDevice(t, store, "aa:bb:cc:dd:ee:01", "10.0.0.1")
	saveDevice(t, store, "aa:bb:cc:dd:ee:02", "10.0.0.2")

	s1 := waitForSocket(t, rig, "10.0.0.1")
	s2 := waitForSocket(t, rig, "10.0.0.2")
	require.Eventually(t, func() bool {
		return s1.connectCount() == 1 && s2.connectCount() == 1
	}, waitFor, tick)

	views := c.Devices()
	require.Len(t, views, 2)
	assert.Equal(t, "aabbccddee01", views[0].MAC)
	assert.Equal(t, wled.StatusDisconnected, views[0].Status)
}

func TestReconcileDestroysRemovedConnection(t *testing.T) {
	c, store, rig, _ := newTestController(t)

	rec := saveDevice(t, store, "aa:bb:cc:dd:ee:01", "10.0.0.1")
	sock := waitForSocket(t, rig, "10.0.0.1")

	require.NoError(t, store.Delete(rec.MAC))
	require.Eventually(t, func() bool { return sock.disconnectCount() == 1 }, waitFor, tick)
	assert.Empty(t, c.Devices())
}

func TestAddressChangeRecreatesConnection(t *testing.T) {
	_, store, rig, _ := newTestController(t)

	rec := saveDevice(t, store, "aa:bb:cc:dd:ee:01", "10.0.0.1")
	old := waitForSocket(t, rig, "10.0.0.1")

	rec.Address = "10.0.0.99"
	require.NoError(t, store.Save(rec))

	fresh := waitForSocket(t, rig, "10.0.0.99")
	require.Eventually(t, func() bool {
		return old.disconnectCount() == 1 && fresh.connectCount() == 1
	}, waitFor, tick)
	assert.Equal(t, 2, rig.count(), "the live connection must be replaced, not redirected")
	assert.Equal(t, 1, old.connectCount(), "old socket must not be reconnected")
}

func TestPauseAndResume(t *testing.T) {
	c, store, rig, _ := newTestController(t)

	saveDevice(t, store, "aa:bb:cc:dd:ee:01", "10.0.0.1")
	s1 := waitForSocket(t, rig, "10.0.0.1")
	require.Eventually(t, func() bool { return s1.connectCount() == 1 }, waitFor, tick)

	c.Pause()
	assert.True(t, c.Paused())
	assert.Equal(t, 1, s1.disconnectCount())

	// A device added while paused gets a connection but no connect call.
	saveDevice(t, store, "aa:bb:cc:dd:ee:02", "10.0.0.2")
	s2 := waitForSocket(t, rig, "10.0.0.2")
	assert.Equal(t, 0, s2.connectCount())

	c.Resume()
	assert.False(t, c.Paused())
	require.Eventually(t, func() bool {
		return s1.connectCount() == 2 && s2.connectCount() == 1
	}, waitFor, tick)
}

func TestBookkeepingWritesOnlyOnMaterialChange(t *testing.T) {
	_, store, rig, _ := newTestController(t)

	rec := saveDevice(t, store, "aa:bb:cc:dd:ee:01", "10.0.0.1")
	sock := waitForSocket(t, rig, "10.0.0.1")

	sock.onState(wled.State{On: true, Info: &wled.Info{Name: "Porch", Ver: "0.14.0"}})

	require.Eventually(t, func() bool {
		got, _ := store.Get(rec.MAC)
		return got.OriginalName == "Porch" && got.Branch == registry.BranchStable
	}, waitFor, tick)

	after, _ := store.Get(rec.MAC)
	assert.True(t, after.LastSeen.After(rec.LastSeen))

	// The same heartbeat again changes nothing; within the last-seen
	// granularity no write happens.
	sock.onState(wled.State{On: true, Info: &wled.Info{Name: "Porch", Ver: "0.14.0"}})
	time.Sleep(50 * time.Millisecond)
	unchanged, _ := store.Get(rec.MAC)
	assert.Equal(t, after.LastSeen, unchanged.LastSeen)
}

func TestBranchClassifiedOncePerDevice(t *testing.T) {
	_, store, rig, _ := newTestController(t)

	rec := saveDevice(t, store, "aa:bb:cc:dd:ee:01", "10.0.0.1")
	sock := waitForSocket(t, rig, "10.0.0.1")

	sock.onState(wled.State{Info: &wled.Info{Name: "Porch", Ver: "0.15.0-b2"}})
	require.Eventually(t, func() bool {
		got, _ := store.Get(rec.MAC)
		return got.Branch == registry.BranchBeta
	}, waitFor, tick)

	// A user moved it to stable; later beta heartbeats must not reclassify.
	got, _ := store.Get(rec.MAC)
	got.Branch = registry.BranchStable
	require.NoError(t, store.Save(got))

	sock.onState(wled.State{Info: &wled.Info{Name: "Porch", Ver: "0.15.0-b2"}})
	time.Sleep(50 * time.Millisecond)
	final, _ := store.Get(rec.MAC)
	assert.Equal(t, registry.BranchStable, final.Branch)
}

func TestUpdateEventPublishedOnceForUnchangedResult(t *testing.T) {
	c, store, rig, bus := newTestController(t)

	var mu sync.Mutex
	var offers []UpdateEvent
	unsub := bus.Subscribe(func(e events.Event) {
		if e.Type != events.UpdateAvailable {
			return
		}
		var ev UpdateEvent
		require.NoError(t, json.Unmarshal(e.Data, &ev))
		if ev.Tag == "" {
			return
		}
		mu.Lock()
		offers = append(offers, ev)
		mu.Unlock()
	})
	defer unsub()

	c.UpdateCatalog([]updates.Release{
		{Tag: "0.15.0", Prerelease: false, PublishedAt: time.Now()},
	})

	rec := saveDevice(t, store, "aa:bb:cc:dd:ee:01", "10.0.0.1")
	sock := waitForSocket(t, rig, "10.0.0.1")

	sock.onState(wled.State{Info: &wled.Info{Ver: "0.14.0"}})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(offers) == 1
	}, waitFor, tick)

	mu.Lock()
	assert.Equal(t, "0.15.0", offers[0].Tag)
	assert.Equal(t, rec.MAC, offers[0].MAC)
	mu.Unlock()

	// Same version again: result unchanged, no re-notification.
	sock.onState(wled.State{Info: &wled.Info{Ver: "0.14.0"}})
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Len(t, offers, 1)
	mu.Unlock()
}

func TestSkipTagSuppressesOffer(t *testing.T) {
	c, store, rig, _ := newTestController(t)

	c.UpdateCatalog([]updates.Release{
		{Tag: "0.15.0", Prerelease: false, PublishedAt: time.Now()},
	})

	rec := saveDevice(t, store, "aa:bb:cc:dd:ee:01", "10.0.0.1")
	sock := waitForSocket(t, rig, "10.0.0.1")

	sock.onState(wled.State{Info: &wled.Info{Ver: "0.14.0"}})
	require.Eventually(t, func() bool {
		view, err := c.Device(rec.MAC)
		return err == nil && view.UpdateTag == "0.15.0"
	}, waitFor, tick)

	got, _ := store.Get(rec.MAC)
	got.SkipTag = "0.15.0"
	require.NoError(t, store.Save(got))

	// Reconcile re-evaluates the unchanged connection against the edited
	// record and withdraws the offer.
	require.Eventually(t, func() bool {
		view, err := c.Device(rec.MAC)
		return err == nil && view.UpdateTag == ""
	}, waitFor, tick)
}

func TestSendStateRoutesToSocket(t *testing.T) {
	c, store, rig, _ := newTestController(t)

	saveDevice(t, store, "aa:bb:cc:dd:ee:01", "10.0.0.1")
	sock := waitForSocket(t, rig, "10.0.0.1")

	require.NoError(t, c.SendState("AA:BB:CC:DD:EE:01", wled.On(true)))
	patches := sock.sentPatches()
	require.Len(t, patches, 1)
	require.NotNil(t, patches[0].On)
	assert.True(t, *patches[0].On)

	err := c.SendState("00:00:00:00:00:00", wled.Brightness(128))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestConnectionStatusFlowsToViews(t *testing.T) {
	c, store, rig, bus := newTestController(t)

	var mu sync.Mutex
	var statuses []wled.Status
	unsub := bus.Subscribe(func(e events.Event) {
		if e.Type != events.ConnectionChanged {
			return
		}
		var ev ConnectionEvent
		require.NoError(t, json.Unmarshal(e.Data, &ev))
		mu.Lock()
		statuses = append(statuses, ev.Status)
		mu.Unlock()
	})
	defer unsub()

	rec := saveDevice(t, store, "aa:bb:cc:dd:ee:01", "10.0.0.1")
	sock := waitForSocket(t, rig, "10.0.0.1")

	sock.onStatus(wled.StatusConnecting)
	sock.onStatus(wled.StatusConnected)

	require.Eventually(t, func() bool {
		view, err := c.Device(rec.MAC)
		return err == nil && view.Status == wled.StatusConnected
	}, waitFor, tick)

	mu.Lock()
	assert.Equal(t, []wled.Status{wled.StatusConnecting, wled.StatusConnected}, statuses)
	mu.Unlock()
}

func TestHandleDiscoveryFastPath(t *testing.T) {
	c, store, rig, _ := newTestController(t)

	rec := saveDevice(t, store, "aa:bb:cc:dd:ee:01", "10.0.0.1")
	old := waitForSocket(t, rig, "10.0.0.1")

	// A known MAC hint patches the address without probing the device;
	// reconciliation then moves the connection to the new address.
	c.HandleDiscovery("10.0.0.42", rec.MAC)

	fresh := waitForSocket(t, rig, "10.0.0.42")
	require.Eventually(t, func() bool {
		return old.disconnectCount() == 1 && fresh.connectCount() == 1
	}, waitFor, tick)

	got, ok := store.Get(rec.MAC)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.42", got.Address)
}

func TestHandleDiscoveryUnknownDeviceResolvesViaFirstContact(t *testing.T) {
	c, store, rig, _ := newTestController(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/json/info", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Garden","ver":"0.14.0","mac":"AA:BB:CC:DD:EE:77"}`))
	}))
	defer srv.Close()
	addr := strings.TrimPrefix(srv.URL, "http://")

	c.HandleDiscovery(addr, "")

	waitForSocket(t, rig, addr)
	got, ok := store.Get("aabbccddee77")
	require.True(t, ok)
	assert.Equal(t, "Garden", got.OriginalName)
	assert.Equal(t, registry.BranchUnknown, got.Branch)
}

func TestHandleDiscoveryProbesRunInParallel(t *testing.T) {
	c, store, _, _ := newTestController(t)

	// The first device hangs mid-probe until released; the second answers
	// immediately. Both advertisements arrive back to back.
	release := make(chan struct{})
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Cellar","ver":"0.14.0","mac":"AA:BB:CC:DD:EE:88"}`))
	}))
	defer slow.Close()
	defer close(release)

	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Hallway","ver":"0.14.0","mac":"AA:BB:CC:DD:EE:99"}`))
	}))
	defer fast.Close()

	c.HandleDiscovery(strings.TrimPrefix(slow.URL, "http://"), "")
	c.HandleDiscovery(strings.TrimPrefix(fast.URL, "http://"), "")

	// The fast device resolves while the slow probe is still blocked.
	require.Eventually(t, func() bool {
		_, ok := store.Get("aabbccddee99")
		return ok
	}, waitFor, tick, "probe of a responsive device stuck behind a hung one")
	_, ok := store.Get("aabbccddee88")
	assert.False(t, ok)
}

func TestStopTearsDownAllConnections(t *testing.T) {
	c, store, rig, _ := newTestController(t)

	saveDevice(t, store, "aa:bb:cc:dd:ee:01", "10.0.0.1")
	saveDevice(t, store, "aa:bb:cc:dd:ee:02", "10.0.0.2")
	s1 := waitForSocket(t, rig, "10.0.0.1")
	s2 := waitForSocket(t, rig, "10.0.0.2")

	c.Stop()
	assert.Equal(t, 1, s1.disconnectCount())
	assert.Equal(t, 1, s2.disconnectCount())
}
