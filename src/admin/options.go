package admin

import "time"

func (a *AdminSocket) _applyOption(opt SetupOption) {
	switch v := opt.(type) {
	case ListenAddress:
		a.config.listenaddr = v
	case InterfaceName:
		a.config.ifname = v
	case ActionTimeout:
		if v > 0 {
			a.config.actionTimeout = v
		}
	}
}

type SetupOption interface {
	isSetupOption()
}

// ListenAddress is unix:///path, tcp://host:port, or none.
type ListenAddress string

// InterfaceName is the Tailscale interface reported by getInterface.
type InterfaceName string

// ActionTimeout bounds how long a single request may wait on the backend.
type ActionTimeout time.Duration

func (a ListenAddress) isSetupOption() {}
func (a InterfaceName) isSetupOption() {}
func (a ActionTimeout) isSetupOption() {}
