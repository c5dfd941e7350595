// Package fleet keeps exactly one live device connection per registry
// record. A single writer goroutine owns the active-connections map;
// registry change notifications, transport callbacks, and API calls are all
// funneled through its inbox, so reconciliation never runs concurrently
// with itself.
package fleet

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/wledfleet/wledd/internal/config"
	"github.com/wledfleet/wledd/internal/errors"
	"github.com/wledfleet/wledd/internal/events"
	"github.com/wledfleet/wledd/internal/firstcontact"
	"github.com/wledfleet/wledd/internal/registry"
	"github.com/wledfleet/wledd/internal/updates"
	"github.com/wledfleet/wledd/pkg/wled"
)

// deviceSocket is the controller-facing surface of one device connection.
// *wled.Socket implements it; tests substitute fakes.
type deviceSocket interface {
	Connect()
	Disconnect()
	SendState(wled.StatePatch) error
	Status() wled.Status
	LastState() *wled.State
}

// socketFactory builds the transport for one device address. The handlers
// fire on the socket's goroutines and must post into the controller inbox.
type socketFactory func(addr string, onState wled.StateHandler, onStatus wled.StatusHandler) deviceSocket

// Config tunes the controller and the sockets it creates.
type Config struct {
	BackoffBase         time.Duration
	BackoffCap          time.Duration
	LastSeenGranularity time.Duration
}

// ConnectionEvent is the payload of a device.connection_changed event.
type ConnectionEvent struct {
	MAC    string      `json:"mac"`
	Status wled.Status `json:"status"`
}

// StateEvent is the payload of a device.state_changed event.
type StateEvent struct {
	MAC   string     `json:"mac"`
	State wled.State `json:"state"`
}

// UpdateEvent is the payload of a device.update_available event. An empty
// Tag clears a previously announced update.
type UpdateEvent struct {
	MAC     string `json:"mac"`
	Version string `json:"version,omitempty"`
	Tag     string `json:"tag,omitempty"`
}

// DeviceView is a registry record joined with the device's live state, as
// served by the API.
type DeviceView struct {
	registry.DeviceRecord
	Status    wled.Status `json:"status"`
	State     *wled.State `json:"state,omitempty"`
	Version   string      `json:"version,omitempty"`
	Signal    int         `json:"signal,omitempty"`
	UpdateTag string      `json:"update_tag,omitempty"`
}

// deviceConn is the writer goroutine's bookkeeping for one live connection.
type deviceConn struct {
	addr string // address the socket was opened against
	sock deviceSocket

	status    wled.Status
	state     *wled.State
	version   string
	signal    int
	updateTag string

	lastSeenSaved time.Time
	pendingSeen   bool // activity observed since the last persisted last-seen
}

// Controller reconciles the persisted device set against live connections.
type Controller struct {
	logger   *slog.Logger
	store    *registry.Store
	resolver *firstcontact.Resolver
	checker  *updates.Checker
	bus      *events.Bus
	cfg      Config

	newSocket socketFactory

	inbox chan func()
	kick  chan struct{} // coalesced reconcile requests

	startOnce   sync.Once
	stopOnce    sync.Once
	done        chan struct{}
	stopped     chan struct{}
	unsubscribe func()

	// Owned by the writer goroutine; never touched from outside run.
	conns  map[string]*deviceConn
	paused bool
}

// NewController wires the controller to its collaborators. Start must be
// called before anything connects.
func NewController(store *registry.Store, resolver *firstcontact.Resolver, checker *updates.Checker, bus *events.Bus, logger *slog.Logger, cfg Config) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LastSeenGranularity <= 0 {
		cfg.LastSeenGranularity = config.DefaultLastSeenGranularity
	}
	c := &Controller{
		logger:   logger,
		store:    store,
		resolver: resolver,
		checker:  checker,
		bus:      bus,
		cfg:      cfg,
		inbox:    make(chan func(), 128),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		conns:    make(map[string]*deviceConn),
	}
	c.newSocket = func(addr string, onState wled.StateHandler, onStatus wled.StatusHandler) deviceSocket {
		return wled.NewSocket(addr, logger, wled.SocketConfig{
			BackoffBase: cfg.BackoffBase,
			BackoffCap:  cfg.BackoffCap,
		}, onState, onStatus)
	}
	return c
}

// Start launches the writer goroutine, subscribes to registry change
// notifications, and runs an initial reconcile against the current records.
func (c *Controller) Start() {
	c.startOnce.Do(func() {
		c.unsubscribe = c.bus.Subscribe(func(e events.Event) {
			switch e.Type {
			case events.DeviceAdded, events.DeviceUpdated, events.DeviceRemoved:
				c.requestReconcile()
			}
		})
		go c.run()
		c.requestReconcile()
	})
}

// Stop tears down every connection and terminates the writer goroutine.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		if c.unsubscribe != nil {
			c.unsubscribe()
		}
		close(c.done)
	})
	<-c.stopped
}

func (c *Controller) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			c.flushPendingSeen()
			for mac, conn := range c.conns {
				conn.sock.Disconnect()
				delete(c.conns, mac)
			}
			return
		case fn := <-c.inbox:
			fn()
		case <-c.kick:
			c.reconcile()
		}
	}
}

// post submits work to the writer goroutine. Safe from any goroutine except
// the writer itself; after Stop the work is dropped.
func (c *Controller) post(fn func()) {
	select {
	case c.inbox <- fn:
	case <-c.done:
	}
}

// call posts fn and waits for the writer to run it.
func (c *Controller) call(fn func()) {
	ran := make(chan struct{})
	c.post(func() {
		fn()
		close(ran)
	})
	select {
	case <-ran:
	case <-c.done:
	}
}

// requestReconcile queues a reconcile; multiple requests while one is
// pending coalesce into a single pass.
func (c *Controller) requestReconcile() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}

// reconcile diffs the registry's record set against the active connections.
// Runs only on the writer goroutine.
func (c *Controller) reconcile() {
	records := c.store.FetchAll()
	want := make(map[string]registry.DeviceRecord, len(records))
	for _, rec := range records {
		want[rec.MAC] = rec
	}

	// Record gone: destroy the connection.
	for mac, conn := range c.conns {
		if _, ok := want[mac]; !ok {
			c.logger.Info("fleet: device removed, destroying connection", "mac", mac, "addr", conn.addr)
			conn.sock.Disconnect()
			delete(c.conns, mac)
			c.checker.Forget(mac)
		}
	}

	for mac, rec := range want {
		conn, ok := c.conns[mac]
		if ok && conn.addr == rec.Address {
			// Unchanged connection; re-evaluate the update tag so branch
			// and skip-tag edits take effect. Memoization keeps this quiet
			// when nothing changed.
			c.evaluateUpdate(mac, conn, rec)
			continue
		}
		if ok {
			// Address moved: never redirect a live connection in place.
			c.logger.Info("fleet: device address changed, recreating connection",
				"mac", mac, "old_addr", conn.addr, "new_addr", rec.Address)
			conn.sock.Disconnect()
			delete(c.conns, mac)
		}
		c.createConn(rec)
	}
}

func (c *Controller) createConn(rec registry.DeviceRecord) {
	mac := rec.MAC
	sock := c.newSocket(rec.Address,
		func(st wled.State) {
			c.post(func() { c.handleState(mac, st) })
		},
		func(status wled.Status) {
			c.post(func() { c.handleStatus(mac, status) })
		},
	)
	c.conns[mac] = &deviceConn{
		addr:          rec.Address,
		sock:          sock,
		status:        wled.StatusDisconnected,
		lastSeenSaved: rec.LastSeen,
	}
	c.logger.Debug("fleet: connection created", "mac", mac, "addr", rec.Address)
	if !c.paused {
		sock.Connect()
	}
}

// handleStatus runs on the writer goroutine via the inbox.
func (c *Controller) handleStatus(mac string, status wled.Status) {
	conn, ok := c.conns[mac]
	if !ok || conn.status == status {
		return
	}
	conn.status = status
	c.bus.Publish(events.NewEvent(events.ConnectionChanged, ConnectionEvent{
		MAC:    mac,
		Status: status,
	}))
}

// handleState runs on the writer goroutine via the inbox. It folds an
// inbound snapshot into the live view, performs bounded bookkeeping writes
// back to the registry, and recomputes update availability.
func (c *Controller) handleState(mac string, st wled.State) {
	conn, ok := c.conns[mac]
	if !ok {
		return
	}
	conn.state = &st
	if st.Info != nil {
		if st.Info.Ver != "" {
			conn.version = st.Info.Ver
		}
		conn.signal = st.Info.Wifi.Signal
	}

	rec, exists := c.store.Get(mac)
	if exists {
		c.bookkeep(conn, &rec, st)
		c.evaluateUpdate(mac, conn, rec)
	}

	c.bus.Publish(events.NewEvent(events.StateChanged, StateEvent{
		MAC:   mac,
		State: st,
	}))
}

// bookkeep writes device-reported facts back to the record: last-seen
// (throttled to the configured granularity), first-time branch
// classification, and reported-name drift. Nothing is written on a
// heartbeat that changes none of them.
func (c *Controller) bookkeep(conn *deviceConn, rec *registry.DeviceRecord, st wled.State) {
	changed := false
	if st.Info != nil {
		if st.Info.Name != "" && rec.OriginalName != st.Info.Name {
			rec.OriginalName = st.Info.Name
			changed = true
		}
		if rec.Branch == registry.BranchUnknown && conn.version != "" {
			rec.Branch = updates.ClassifyBranch(conn.version)
			changed = true
		}
	}

	now := time.Now().UTC()
	seenDue := now.Sub(conn.lastSeenSaved) >= c.cfg.LastSeenGranularity
	if !changed && !seenDue {
		conn.pendingSeen = true
		return
	}

	rec.LastSeen = now
	if err := c.store.Save(*rec); err != nil {
		c.logger.Error("fleet: bookkeeping write failed", "mac", rec.MAC, "error", err)
		return
	}
	conn.lastSeenSaved = now
	conn.pendingSeen = false
}

// flushPendingSeen persists last-seen for connections whose activity was
// throttled, so a pause or shutdown loses nothing.
func (c *Controller) flushPendingSeen() {
	now := time.Now().UTC()
	for mac, conn := range c.conns {
		if !conn.pendingSeen {
			continue
		}
		rec, ok := c.store.Get(mac)
		if !ok {
			continue
		}
		rec.LastSeen = now
		if err := c.store.Save(rec); err != nil {
			c.logger.Error("fleet: last-seen flush failed", "mac", mac, "error", err)
			continue
		}
		conn.lastSeenSaved = now
		conn.pendingSeen = false
	}
}

// evaluateUpdate recomputes the device's update tag and announces the
// result when it changed.
func (c *Controller) evaluateUpdate(mac string, conn *deviceConn, rec registry.DeviceRecord) {
	tag, changed := c.checker.Evaluate(mac, conn.version, rec.Branch, rec.SkipTag)
	conn.updateTag = tag
	if !changed {
		return
	}
	if tag != "" {
		c.logger.Info("fleet: update available", "mac", mac, "version", conn.version, "tag", tag)
	}
	c.bus.Publish(events.NewEvent(events.UpdateAvailable, UpdateEvent{
		MAC:     mac,
		Version: conn.version,
		Tag:     tag,
	}))
}

// HandleDiscovery routes one discovery advertisement. A MAC hint that
// matches a known record takes the fast path (address patch, no probe);
// anything else gets a first-contact probe on its own goroutine, so a slow
// or dead device never delays resolution of the other advertisements in a
// run. Registry writes come back to the writer as change notifications.
func (c *Controller) HandleDiscovery(addr, macHint string) {
	if macHint != "" && c.resolver.FastUpdateAddress(macHint, addr) {
		return
	}
	go func() {
		if _, err := c.resolver.ResolveAndUpsert(context.Background(), addr); err != nil {
			c.logger.Debug("fleet: discovery resolve failed", "addr", addr, "error", err)
		}
	}()
}

// AddDevice resolves a user-supplied address through first-contact and
// returns the resulting record. Errors surface to the caller unmangled
// (invalid address, no identity, network failure).
func (c *Controller) AddDevice(ctx context.Context, addr string) (registry.DeviceRecord, error) {
	return c.resolver.ResolveAndUpsert(ctx, addr)
}

// RemoveDevice deletes a device record; reconciliation tears the live
// connection down as a consequence of the change notification.
func (c *Controller) RemoveDevice(mac string) error {
	return c.store.Delete(mac)
}

// UpdateCatalog installs a fresh release catalog and re-evaluates every
// connected device against it.
func (c *Controller) UpdateCatalog(releases []updates.Release) {
	c.checker.SetCatalog(releases)
	c.post(func() {
		for mac, conn := range c.conns {
			if rec, ok := c.store.Get(mac); ok {
				c.evaluateUpdate(mac, conn, rec)
			}
		}
	})
}

// Pause disconnects every active connection without destroying it and
// flushes throttled registry writes. New connections created while paused
// stay disconnected until Resume.
func (c *Controller) Pause() {
	c.call(func() {
		if c.paused {
			return
		}
		c.paused = true
		c.flushPendingSeen()
		for _, conn := range c.conns {
			conn.sock.Disconnect()
		}
		c.logger.Info("fleet: paused", "connections", len(c.conns))
	})
}

// Resume reconnects every active connection.
func (c *Controller) Resume() {
	c.call(func() {
		if !c.paused {
			return
		}
		c.paused = false
		for _, conn := range c.conns {
			conn.sock.Connect()
		}
		c.logger.Info("fleet: resumed", "connections", len(c.conns))
	})
}

// Paused reports whether the fleet is paused.
func (c *Controller) Paused() bool {
	var paused bool
	c.call(func() { paused = c.paused })
	return paused
}

// SendState sends a partial state patch to one device. The write happens on
// the caller's goroutine; only the socket lookup goes through the writer.
func (c *Controller) SendState(mac string, patch wled.StatePatch) error {
	mac = registry.NormalizeMAC(mac)
	var sock deviceSocket
	c.call(func() {
		if conn, ok := c.conns[mac]; ok {
			sock = conn.sock
		}
	})
	if sock == nil {
		return errors.NotFoundf("no device with MAC %s", mac)
	}
	return sock.SendState(patch)
}

// Devices returns a view of every registry record joined with its live
// connection state, sorted by MAC.
func (c *Controller) Devices() []DeviceView {
	records := c.store.FetchAll()
	live := c.snapshot()

	views := make([]DeviceView, 0, len(records))
	for _, rec := range records {
		views = append(views, joinView(rec, live[rec.MAC]))
	}
	sort.Slice(views, func(i, j int) bool { return views[i].MAC < views[j].MAC })
	return views
}

// Device returns the view for one device.
func (c *Controller) Device(mac string) (DeviceView, error) {
	mac = registry.NormalizeMAC(mac)
	rec, ok := c.store.Get(mac)
	if !ok {
		return DeviceView{}, errors.NotFoundf("no device with MAC %s", mac)
	}
	live := c.snapshot()
	return joinView(rec, live[mac]), nil
}

// liveView is the writer-state snapshot used to build DeviceViews.
type liveView struct {
	status    wled.Status
	state     *wled.State
	version   string
	signal    int
	updateTag string
}

func (c *Controller) snapshot() map[string]liveView {
	out := make(map[string]liveView)
	c.call(func() {
		for mac, conn := range c.conns {
			out[mac] = liveView{
				status:    conn.status,
				state:     conn.state,
				version:   conn.version,
				signal:    conn.signal,
				updateTag: conn.updateTag,
			}
		}
	})
	return out
}

func joinView(rec registry.DeviceRecord, lv liveView) DeviceView {
	return DeviceView{
		DeviceRecord: rec,
		Status:       lv.status,
		State:        lv.state,
		Version:      lv.version,
		Signal:       lv.signal,
		UpdateTag:    lv.updateTag,
	}
}
