package main

import (
	"flag"
	"os"

	"github.com/peterbourgon/ff/v3"
)

type CmdLineEnv struct {
	genconf       bool
	useconf       bool
	useconffile   string
	normaliseconf bool
	confjson      bool
	ver           bool
	logto         string
	loglevel      string
	user          string
	flags         *flag.FlagSet
}

// parseFlagsAndArgs reads the flags from args. Every flag can also be given
// as an environment variable, e.g. TSPANEL_USECONFFILE for -useconffile.
func (cmdLineEnv *CmdLineEnv) parseFlagsAndArgs(args []string) error {
	fs := flag.NewFlagSet("tspanel", flag.ContinueOnError)
	cmdLineEnv.flags = fs
	fs.SetOutput(os.Stdout)
	fs.BoolVar(&cmdLineEnv.genconf, "genconf", false, "print a new config to stdout")
	fs.BoolVar(&cmdLineEnv.useconf, "useconf", false, "read HJSON/JSON config from stdin")
	fs.StringVar(&cmdLineEnv.useconffile, "useconffile", "", "read HJSON/JSON config from specified file path")
	fs.BoolVar(&cmdLineEnv.normaliseconf, "normaliseconf", false, "use in combination with either -useconf or -useconffile, outputs your configuration normalised")
	fs.BoolVar(&cmdLineEnv.confjson, "json", false, "print configuration from -genconf or -normaliseconf as JSON instead of HJSON")
	fs.BoolVar(&cmdLineEnv.ver, "version", false, "prints the version of this build")
	fs.StringVar(&cmdLineEnv.logto, "logto", "stdout", "file path to log to, \"syslog\" or \"stdout\"")
	fs.StringVar(&cmdLineEnv.loglevel, "loglevel", "info", "loglevel to enable")
	fs.StringVar(&cmdLineEnv.user, "user", "", "user or user:group to run as once the sockets are bound")

	return ff.Parse(fs, args, ff.WithEnvVarPrefix("TSPANEL"))
}
