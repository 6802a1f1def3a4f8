//go:build !unix

package main

import (
	"github.com/gologme/log"

	"github.com/coreyleavitt/tailscale-openwrt/src/panel"
)

func handlePollSignal(p *panel.Panel, logger *log.Logger) (stop func()) {
	return func() {}
}
