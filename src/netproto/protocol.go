// Package netproto describes network protocols to a router configuration UI
// and reports the live state of the interfaces they own.
package netproto

import (
	"fmt"
	"sort"
	"sync"
)

// Protocol tells the network configuration which interface a protocol owns
// and how to render its settings.
type Protocol interface {
	Name() string
	I18n() string
	Ifname() string
	OpkgPackage() string
	IsFloating() bool
	IsVirtual() bool
	// Devices returns the devices bridged into the interface, or nil if the
	// protocol manages its own device.
	Devices() []string
	ContainsDevice(ifname string) bool
	FormOptions() []FormOption
}

// FormOption is one field rendered on the interface settings form.
type FormOption struct {
	Tab      string `json:"tab"`
	Name     string `json:"name"`
	Title    string `json:"title"`
	ReadOnly bool   `json:"readonly"`
	Value    string `json:"value"`
}

var (
	mutex     sync.RWMutex
	protocols = map[string]Protocol{}
)

// Register adds a protocol. Registering a name twice is an error.
func Register(p Protocol) error {
	mutex.Lock()
	defer mutex.Unlock()
	if _, ok := protocols[p.Name()]; ok {
		return fmt.Errorf("protocol %q is already registered", p.Name())
	}
	protocols[p.Name()] = p
	return nil
}

// Lookup returns the protocol registered under name.
func Lookup(name string) (Protocol, bool) {
	mutex.RLock()
	defer mutex.RUnlock()
	p, ok := protocols[name]
	return p, ok
}

// Protocols returns every registered protocol sorted by name.
func Protocols() []Protocol {
	mutex.RLock()
	defer mutex.RUnlock()
	list := make([]Protocol, 0, len(protocols))
	for _, p := range protocols {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name() < list[j].Name()
	})
	return list
}

// Describe flattens a protocol into a value that can be sent as JSON.
func Describe(p Protocol) Descriptor {
	return Descriptor{
		Name:        p.Name(),
		I18n:        p.I18n(),
		Ifname:      p.Ifname(),
		OpkgPackage: p.OpkgPackage(),
		Floating:    p.IsFloating(),
		Virtual:     p.IsVirtual(),
		Devices:     p.Devices(),
		FormOptions: p.FormOptions(),
	}
}

type Descriptor struct {
	Name        string       `json:"name"`
	I18n        string       `json:"i18n"`
	Ifname      string       `json:"ifname"`
	OpkgPackage string       `json:"opkg_package"`
	Floating    bool         `json:"floating"`
	Virtual     bool         `json:"virtual"`
	Devices     []string     `json:"devices"`
	FormOptions []FormOption `json:"form_options"`
}
