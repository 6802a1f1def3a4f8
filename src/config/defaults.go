package config

var defaultConfig = ""      // LDFLAGS='-X github.com/coreyleavitt/tailscale-openwrt/src/config.defaultConfig=/path/to/config
var defaultAdminListen = "" // LDFLAGS='-X github.com/coreyleavitt/tailscale-openwrt/src/config.defaultAdminListen=unix://path/to/sock'

// Defines which parameters are expected by default for configuration on a
// specific platform. These values are populated in the relevant defaults_*.go
// for the platform being targeted. They must be set.
type platformDefaultParameters struct {
	// Admin socket
	DefaultAdminListen string

	// Configuration (used for tspanelctl)
	DefaultConfigFile string

	// rpcd JSON-RPC endpoint
	DefaultRPCEndpoint string

	// Web UI
	DefaultWebUIListen string

	// Interface owned by tailscaled
	DefaultInterfaceName string
}

func GetDefaults() platformDefaultParameters {
	defaults := getDefaults()
	if defaultConfig != "" {
		defaults.DefaultConfigFile = defaultConfig
	}
	if defaultAdminListen != "" {
		defaults.DefaultAdminListen = defaultAdminListen
	}
	return defaults
}
