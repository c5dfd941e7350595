// Package wled implements the protocol surface of a WLED controller: the
// JSON self-description endpoint, the live state snapshots and patches
// exchanged over the device's WebSocket, and the per-device connection
// state machine.
package wled

// Wifi carries the signal quality a device reports about its own uplink.
type Wifi struct {
	Signal int `json:"signal"`
}

// Info is the device self-description served at /json/info and embedded in
// WebSocket state frames. Mac is the durable identity; everything else is
// informational.
type Info struct {
	Name string `json:"name"`
	Ver  string `json:"ver"`
	Mac  string `json:"mac"`
	IP   string `json:"ip,omitempty"`
	Wifi Wifi   `json:"wifi"`
}

// Segment is one LED segment in a state snapshot.
type Segment struct {
	ID  int     `json:"id"`
	On  bool    `json:"on"`
	Bri int     `json:"bri"`
	Col [][]int `json:"col,omitempty"`
	FX  int     `json:"fx"`
}

// State is an inbound full state snapshot: {on, bri, seg:[...], info:{...}}.
// The embedded Info is optional; devices include it on the first frame and
// on request.
type State struct {
	On   bool      `json:"on"`
	Bri  int       `json:"bri"`
	Seg  []Segment `json:"seg,omitempty"`
	Info *Info     `json:"info,omitempty"`
}

// StatePatch is an outbound partial state change, e.g. {"on":true} or
// {"bri":128}. Nil fields are omitted so the device only applies what is set.
type StatePatch struct {
	On  *bool `json:"on,omitempty"`
	Bri *int  `json:"bri,omitempty"`
}

// On returns a power-only patch.
func On(on bool) StatePatch {
	return StatePatch{On: &on}
}

// Brightness returns a brightness-only patch.
func Brightness(bri int) StatePatch {
	return StatePatch{Bri: &bri}
}

// Status is the connection status of a device socket.
type Status int

const (
	// StatusDisconnected is the initial state; re-entered on any failure
	// or manual disconnect.
	StatusDisconnected Status = iota
	// StatusConnecting means a dial is in flight.
	StatusConnecting
	// StatusConnected means the socket is open and frames flow.
	StatusConnected
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// MarshalJSON renders the status as its string form.
func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}
