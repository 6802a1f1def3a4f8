package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/hjson/hjson-go/v4"

	"github.com/coreyleavitt/tailscale-openwrt/src/config"
)

type CmdLineEnv struct {
	args                 []string
	endpoint, server     string
	injson, verbose, ver bool
}

func newCmdLineEnv() CmdLineEnv {
	var cmdLineEnv CmdLineEnv
	cmdLineEnv.endpoint = config.GetDefaults().DefaultAdminListen
	return cmdLineEnv
}

func (cmdLineEnv *CmdLineEnv) parseFlagsAndArgs() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] command [key=value] [key=value] ...\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("Please note that options must always specified BEFORE the command\non the command line or they will be ignored.")
		fmt.Println()
		fmt.Println("Commands:\n  - Use \"list\" for a list of available commands")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  - ", os.Args[0], "list")
		fmt.Println("  - ", os.Args[0], "getState")
		fmt.Println("  - ", os.Args[0], "-v getState")
		fmt.Println("  - ", os.Args[0], "setKillswitch action=enable")
		fmt.Println("  - ", os.Args[0], "setExitNode node=us-nyc")
		fmt.Println("  - ", os.Args[0], "setAdvertiseRoutes routes=192.168.1.0/24,10.0.0.0/8")
		fmt.Println("  - ", os.Args[0], "-endpoint=tcp://localhost:9002 getExitNodes")
		fmt.Println("  - ", os.Args[0], "-endpoint=unix:///var/run/tspanel.sock getRoutes")
	}

	server := flag.String("endpoint", cmdLineEnv.endpoint, "Admin socket endpoint")
	injson := flag.Bool("json", false, "Output in JSON format (as opposed to pretty-print)")
	verbose := flag.Bool("v", false, "Verbose output (includes notifications and busy controls)")
	ver := flag.Bool("version", false, "Prints the version of this build")

	flag.Parse()

	cmdLineEnv.args = flag.Args()
	cmdLineEnv.server = *server
	cmdLineEnv.injson = *injson
	cmdLineEnv.verbose = *verbose
	cmdLineEnv.ver = *ver
}

// setEndpoint picks the endpoint from the command line, or else from the
// AdminListen option of the default configuration file.
func (cmdLineEnv *CmdLineEnv) setEndpoint(logger *log.Logger) {
	configFile := config.GetDefaults().DefaultConfigFile
	if cmdLineEnv.server != cmdLineEnv.endpoint {
		cmdLineEnv.endpoint = cmdLineEnv.server
		logger.Println("Using endpoint", cmdLineEnv.endpoint, "from command line")
		return
	}
	conf, err := os.ReadFile(configFile)
	if err != nil {
		logger.Println("Can't open config file from default location", configFile)
		logger.Println("Falling back to platform default", config.GetDefaults().DefaultAdminListen)
		return
	}
	if conf, err = config.Normalise(conf); err != nil {
		panic(err)
	}
	var dat map[string]interface{}
	if err := hjson.Unmarshal(conf, &dat); err != nil {
		panic(err)
	}
	if ep, ok := dat["AdminListen"].(string); ok && (ep != "none" && ep != "") {
		cmdLineEnv.endpoint = ep
		logger.Println("Found platform default config file", configFile)
		logger.Println("Using endpoint", cmdLineEnv.endpoint, "from AdminListen")
	} else {
		logger.Println("Configuration file doesn't contain appropriate AdminListen option")
		logger.Println("Falling back to platform default", config.GetDefaults().DefaultAdminListen)
	}
}
