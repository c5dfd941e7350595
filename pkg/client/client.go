package client

// ClientInterface defines the operations a wledd client exposes. It exists
// so CLI commands can be tested against a mock.
type ClientInterface interface {
	GetVersion() (VersionInfo, error)
	ListDevices(all bool) ([]Device, error)
	GetDevice(mac string) (Device, error)
	AddDevice(address string) (Device, error)
	UpdateDevice(mac string, settings map[string]any) (Device, error)
	DeleteDevice(mac string) error
	SetDeviceState(mac string, state map[string]any) error
	GetFleetStatus() (FleetStatus, error)
	PauseFleet() error
	ResumeFleet() error
}

var _ ClientInterface = (*HTTPClient)(nil)
