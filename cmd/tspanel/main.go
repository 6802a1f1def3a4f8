package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gologme/log"
	gsyslog "github.com/hashicorp/go-syslog"
	"github.com/hjson/hjson-go/v4"
	"github.com/kardianos/minwinsvc"

	"github.com/coreyleavitt/tailscale-openwrt/src/admin"
	"github.com/coreyleavitt/tailscale-openwrt/src/backend"
	"github.com/coreyleavitt/tailscale-openwrt/src/config"
	"github.com/coreyleavitt/tailscale-openwrt/src/panel"
	"github.com/coreyleavitt/tailscale-openwrt/src/ubus"
	"github.com/coreyleavitt/tailscale-openwrt/src/version"
	"github.com/coreyleavitt/tailscale-openwrt/src/webui"
)

type daemon struct {
	panel *panel.Panel
	admin *admin.AdminSocket
	webui *webui.WebUIServer
}

// The main function is responsible for configuring and starting the panel.
func main() {
	var cmdLineEnv CmdLineEnv
	if err := cmdLineEnv.parseFlagsAndArgs(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}

	// Catch interrupts from the operating system to exit gracefully.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Capture the service being stopped on Windows.
	minwinsvc.SetOnExit(cancel)

	// Create a new logger that logs output to stdout.
	var logger *log.Logger
	switch cmdLineEnv.logto {
	case "stdout":
		logger = log.New(os.Stdout, "", log.Flags())

	case "syslog":
		if syslogger, err := gsyslog.NewLogger(gsyslog.LOG_NOTICE, "DAEMON", version.BuildName()); err == nil {
			logger = log.New(syslogger, "", log.Flags()&^(log.Ldate|log.Ltime))
		}

	default:
		if logfd, err := os.OpenFile(cmdLineEnv.logto, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
			logger = log.New(logfd, "", log.Flags())
		}
	}
	if logger == nil {
		logger = log.New(os.Stdout, "", log.Flags())
		logger.Warnln("Logging defaulting to stdout")
	}
	if cmdLineEnv.normaliseconf {
		setLogLevel("error", logger)
	} else {
		setLogLevel(cmdLineEnv.loglevel, logger)
	}

	cfg := config.GenerateConfig()
	switch {
	case cmdLineEnv.ver:
		fmt.Println("Build name:", version.BuildName())
		fmt.Println("Build version:", version.BuildVersion())
		return

	case cmdLineEnv.useconf:
		if _, err := cfg.ReadFrom(os.Stdin); err != nil {
			logger.Fatalln("Failed to read configuration from stdin:", err)
		}

	case cmdLineEnv.useconffile != "":
		f, err := os.Open(cmdLineEnv.useconffile)
		if err != nil {
			logger.Fatalln("Failed to open configuration:", err)
		}
		if _, err := cfg.ReadFrom(f); err != nil {
			logger.Fatalln("Failed to read configuration:", err)
		}
		_ = f.Close()

	case cmdLineEnv.genconf:
		printConfig(cfg, cmdLineEnv.confjson)
		return

	default:
		fmt.Println("Usage:")
		cmdLineEnv.flags.PrintDefaults()
		fmt.Println("\nYou need to specify some config data using -useconf or -useconffile, or generate one with -genconf.")
		return
	}

	if cmdLineEnv.normaliseconf {
		printConfig(cfg, cmdLineEnv.confjson)
		return
	}

	n, err := setup(ctx, cfg, logger)
	if err != nil {
		logger.Fatalln(err)
	}

	// The sockets are bound, so privileges can be dropped now.
	if cmdLineEnv.user != "" {
		if err := chuser(cmdLineEnv.user); err != nil {
			n.stop()
			logger.Fatalln("Failed to change user:", err)
		}
	}

	st := n.panel.View().Status
	status := fmt.Sprintf("STATUS=Tailscale %s, connected: %t", st.Version, st.Connected)
	if ok, err := sdNotify(notifyReady, status); err != nil {
		logger.Warnln("Failed to notify the service manager:", err)
	} else if ok {
		logger.Debugln("Notified the service manager of the startup")
	}

	// Poll on demand when asked to by the service manager.
	stopSignals := handlePollSignal(n.panel, logger)
	defer stopSignals()

	// Block until we are told to shut down.
	<-ctx.Done()
	logger.Infoln("Shutting down")
	_, _ = sdNotify(notifyStopping)
	n.stop()
}

// setup builds the RPC client, the panel and its two front ends. The panel
// is loaded once before either front end is started.
func setup(ctx context.Context, cfg *config.PanelConfig, logger *log.Logger) (*daemon, error) {
	n := &daemon{}

	// Set up the RPC client.
	options := []ubus.SetupOption{
		ubus.Timeout(cfg.RPCTimeoutDuration()),
	}
	if cfg.RPCUsername != "" {
		options = append(options, ubus.Credentials{
			Username: cfg.RPCUsername,
			Password: cfg.RPCPassword,
		})
	}
	client, err := ubus.New(cfg.RPCEndpoint, logger, options...)
	if err != nil {
		return nil, err
	}

	// Set up the panel and fetch the initial state.
	n.panel = panel.New(backend.New(client), logger,
		panel.PollInterval(cfg.PollDuration()),
		panel.MaxNotifications(cfg.MaxNotifications),
	)
	v := n.panel.Load(ctx)
	logger.Infof("Tailscale %s, connected: %t, %s", v.Status.Version, v.Status.Connected, v.Status.KillswitchStatus)
	if err := n.panel.Start(ctx); err != nil {
		return nil, err
	}

	// Set up the admin socket.
	n.admin = admin.New(n.panel, logger,
		admin.ListenAddress(cfg.AdminListen),
		admin.InterfaceName(cfg.InterfaceName),
	)
	if err := n.admin.Start(); err != nil {
		n.stop()
		return nil, err
	}

	// Set up the web panel.
	if cfg.WebUIListen != "" && cfg.WebUIListen != "none" {
		options := []webui.SetupOption{
			webui.MaxConns(cfg.WebUIMaxConns),
			webui.InterfaceName(cfg.InterfaceName),
		}
		if cfg.WebUIRoot != "" {
			options = append(options, webui.WebRoot(cfg.WebUIRoot))
		}
		if cfg.WebUIPassword == "" {
			logger.Warnln("The web panel has no password set")
		}
		n.webui = webui.Server(cfg.WebUIListen, cfg.WebUIPassword, n.panel, logger, options...)
		if err := n.webui.Listen(); err != nil {
			n.stop()
			return nil, err
		}
		go func() {
			if err := n.webui.Serve(); err != nil {
				logger.Errorln(err)
			}
		}()
	}

	return n, nil
}

func (n *daemon) stop() {
	if n.webui != nil {
		_ = n.webui.Stop()
	}
	if n.admin != nil {
		_ = n.admin.Stop()
	}
	_ = n.panel.Stop()
}

func printConfig(cfg *config.PanelConfig, asJSON bool) {
	var bs []byte
	var err error
	if asJSON {
		bs, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		bs, err = hjson.Marshal(cfg)
	}
	if err != nil {
		panic(err)
	}
	fmt.Println(string(bs))
}

func setLogLevel(loglevel string, logger *log.Logger) {
	levels := [...]string{"error", "warn", "info", "debug", "trace"}
	loglevel = strings.ToLower(loglevel)

	contains := func() bool {
		for _, l := range levels {
			if l == loglevel {
				return true
			}
		}
		return false
	}

	if !contains() { // set default log level
		logger.Infoln("Loglevel parse failed. Set default level(info)")
		loglevel = "info"
	}

	for _, l := range levels {
		logger.EnableLevel(l)
		if l == loglevel {
			break
		}
	}
}
