package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/coreyleavitt/tailscale-openwrt/src/admin"
	"github.com/coreyleavitt/tailscale-openwrt/src/version"
)

func main() {
	// makes sure we can use defer and still return an error code to the OS
	os.Exit(run())
}

func run() (code int) {
	logbuffer := &bytes.Buffer{}
	logger := log.New(logbuffer, "", log.Flags())

	defer func() {
		if r := recover(); r != nil {
			logger.Println("Fatal error:", r)
			fmt.Print(logbuffer)
			code = 1
		}
	}()

	cmdLineEnv := newCmdLineEnv()
	cmdLineEnv.parseFlagsAndArgs()

	if cmdLineEnv.ver {
		fmt.Println("Build name:", version.BuildName())
		fmt.Println("Build version:", version.BuildVersion())
		fmt.Println("To get the version number of the running panel, run", os.Args[0], "getState")
		return 0
	}

	if len(cmdLineEnv.args) == 0 {
		flag.Usage()
		return 0
	}

	cmdLineEnv.setEndpoint(logger)

	conn, err := dial(cmdLineEnv.endpoint, logger)
	if err != nil {
		panic(err)
	}

	logger.Println("Connected")
	defer conn.Close()

	send, err := buildRequest(cmdLineEnv.args, logger)
	if err != nil {
		panic(err)
	}
	recv := &admin.AdminSocketResponse{}
	if err := json.NewEncoder(conn).Encode(send); err != nil {
		panic(err)
	}
	logger.Printf("Request sent")
	if err := json.NewDecoder(conn).Decode(recv); err != nil {
		panic(err)
	}
	if recv.Status == "error" {
		if err := recv.Error; err != "" {
			fmt.Println("Admin socket returned an error:", err)
		} else {
			fmt.Println("Admin socket returned an error but didn't specify any error text")
		}
		return 1
	}
	if cmdLineEnv.injson {
		if json, err := json.MarshalIndent(recv.Response, "", "  "); err == nil {
			fmt.Println(string(json))
		}
		return 0
	}

	if err := render(os.Stdout, send.Name, recv.Response, cmdLineEnv.verbose); err != nil {
		panic(err)
	}
	return 0
}

func dial(endpoint string, logger *log.Logger) (net.Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		logger.Println("Connecting to TCP socket", endpoint)
		return net.Dial("tcp", endpoint)
	}
	switch strings.ToLower(u.Scheme) {
	case "unix":
		logger.Println("Connecting to UNIX socket", endpoint[7:])
		return net.Dial("unix", endpoint[7:])
	case "tcp":
		logger.Println("Connecting to TCP socket", u.Host)
		return net.Dial("tcp", u.Host)
	default:
		logger.Println("Unknown protocol or malformed address - check your endpoint")
		return nil, errors.New("protocol not supported")
	}
}

// buildRequest turns "command key=value ..." into an admin request.
func buildRequest(cmdArgs []string, logger *log.Logger) (*admin.AdminSocketRequest, error) {
	send := &admin.AdminSocketRequest{}
	args := map[string]string{}
	for c, a := range cmdArgs {
		if c == 0 {
			if strings.HasPrefix(a, "-") {
				logger.Printf("Ignoring flag %s as it should be specified before other parameters\n", a)
				continue
			}
			logger.Printf("Sending request: %v\n", a)
			send.Name = a
			continue
		}
		tokens := strings.SplitN(a, "=", 2)
		switch {
		case len(tokens) == 1:
			logger.Println("Ignoring invalid argument:", a)
		default:
			args[tokens[0]] = tokens[1]
		}
	}
	if send.Name == "" {
		return nil, errors.New("no command given")
	}
	var err error
	if send.Arguments, err = json.Marshal(args); err != nil {
		return nil, err
	}
	return send, nil
}
