package config

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/hjson/hjson-go/v4"
	"github.com/mitchellh/mapstructure"
	"golang.org/x/text/encoding/unicode"
)

// PanelConfig defines all configuration values needed to run a single panel
// daemon against one router's rpcd.
type PanelConfig struct {
	RPCEndpoint      string `comment:"URL of the rpcd JSON-RPC endpoint exposed by uhttpd-mod-ubus,\ne.g. http://192.168.1.1/ubus. The luci.tailscale object must be\ncallable from the session used below."`
	RPCUsername      string `comment:"Username for the rpcd session login. Leave empty to use the\nunauthenticated session, which only works if its ACL grants\naccess to luci.tailscale."`
	RPCPassword      string `comment:"Password for the rpcd session login."`
	RPCTimeout       int    `comment:"Timeout in seconds applied to every single RPC call."`
	PollInterval     int    `comment:"Seconds between two status polls. The panel re-fetches the full\ndaemon status on every tick."`
	MaxNotifications int    `comment:"Number of notifications kept for display before the oldest ones\nare dropped."`
	AdminListen      string `comment:"Listen address for admin connections. Default is to listen for local\nconnections either on TCP/9002 or a UNIX socket depending on your\nplatform. Use this value for tspanelctl -endpoint=X. To disable\nthe admin socket, use the value \"none\" instead."`
	WebUIListen      string `comment:"Listen address for the web panel, e.g. 127.0.0.1:8088. Use \"none\"\nto disable the web panel."`
	WebUIPassword    string `comment:"Password protecting the web panel. If empty, no login is required,\nso make sure WebUIListen is not reachable from untrusted networks."`
	WebUIRoot        string `comment:"Optional directory or .zip archive to serve the panel assets from\ninstead of the ones built into the binary."`
	WebUIMaxConns    int    `comment:"Maximum number of concurrent web panel connections."`
	InterfaceName    string `comment:"Name of the network interface owned by tailscaled."`
}

// GenerateConfig returns the default configuration. It is used when outputting
// the -genconf parameter and as the base that configuration files are decoded
// on top of, so that missing options keep their defaults.
func GenerateConfig() *PanelConfig {
	defaults := GetDefaults()
	cfg := PanelConfig{}
	cfg.RPCEndpoint = defaults.DefaultRPCEndpoint
	cfg.RPCTimeout = 10
	cfg.PollInterval = 5
	cfg.MaxNotifications = 20
	cfg.AdminListen = defaults.DefaultAdminListen
	cfg.WebUIListen = defaults.DefaultWebUIListen
	cfg.WebUIMaxConns = 32
	cfg.InterfaceName = defaults.DefaultInterfaceName
	return &cfg
}

// Normalise strips a UTF-16 byte order mark, decoding the configuration back
// down into UTF-8. hjson doesn't know what to do with UTF-16.
func Normalise(conf []byte) ([]byte, error) {
	if len(conf) < 2 {
		return conf, nil
	}
	if bytes.Equal(conf[0:2], []byte{0xFF, 0xFE}) ||
		bytes.Equal(conf[0:2], []byte{0xFE, 0xFF}) {
		utf := unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
		decoder := utf.NewDecoder()
		return decoder.Bytes(conf)
	}
	return conf, nil
}

// ReadConfig decodes an HJSON or JSON configuration on top of the defaults.
func ReadConfig(conf []byte) (*PanelConfig, error) {
	conf, err := Normalise(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode configuration encoding: %w", err)
	}
	cfg := GenerateConfig()
	var dat map[string]interface{}
	if err := hjson.Unmarshal(conf, &dat); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(dat); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ReadFrom replaces the configuration with the one read from r.
func (cfg *PanelConfig) ReadFrom(r io.Reader) (int64, error) {
	conf, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	n := int64(len(conf))
	read, err := ReadConfig(conf)
	if err != nil {
		return n, err
	}
	*cfg = *read
	return n, nil
}

// Validate checks the options that cannot be sanely defaulted.
func (cfg *PanelConfig) Validate() error {
	switch {
	case cfg.RPCEndpoint == "":
		return fmt.Errorf("RPCEndpoint must be set")
	case cfg.PollInterval < 1:
		return fmt.Errorf("PollInterval must be at least 1 second, got %d", cfg.PollInterval)
	case cfg.RPCTimeout < 1:
		return fmt.Errorf("RPCTimeout must be at least 1 second, got %d", cfg.RPCTimeout)
	case cfg.MaxNotifications < 1:
		return fmt.Errorf("MaxNotifications must be at least 1, got %d", cfg.MaxNotifications)
	case cfg.WebUIMaxConns < 1:
		return fmt.Errorf("WebUIMaxConns must be at least 1, got %d", cfg.WebUIMaxConns)
	}
	return nil
}

// PollDuration returns PollInterval as a time.Duration.
func (cfg *PanelConfig) PollDuration() time.Duration {
	return time.Duration(cfg.PollInterval) * time.Second
}

// RPCTimeoutDuration returns RPCTimeout as a time.Duration.
func (cfg *PanelConfig) RPCTimeoutDuration() time.Duration {
	return time.Duration(cfg.RPCTimeout) * time.Second
}
