//go:build windows
// +build windows

package config

// Sane defaults for the Windows platform. The "default" options may be
// may be replaced by the running configuration.
func getDefaults() platformDefaultParameters {
	return platformDefaultParameters{
		// Admin
		DefaultAdminListen: "tcp://localhost:9002",

		// Configuration (used for tspanelctl)
		DefaultConfigFile: "C:\\Program Files\\tspanel\\tspanel.conf",

		// The router is remote when managed from a Windows host
		DefaultRPCEndpoint: "http://192.168.1.1/ubus",

		// Web UI
		DefaultWebUIListen: "127.0.0.1:8088",

		DefaultInterfaceName: "Tailscale",
	}
}
