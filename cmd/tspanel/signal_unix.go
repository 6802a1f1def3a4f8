//go:build unix

package main

import (
	"os"
	"os/signal"

	"github.com/gologme/log"
	"golang.org/x/sys/unix"

	"github.com/coreyleavitt/tailscale-openwrt/src/panel"
)

// handlePollSignal polls the status immediately on SIGUSR1, so that hotplug
// scripts can refresh the panel after tailscaled changes state.
func handlePollSignal(p *panel.Panel, logger *log.Logger) (stop func()) {
	ch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(ch, unix.SIGUSR1)
	go func() {
		for {
			select {
			case <-ch:
				logger.Debugln("Received SIGUSR1, polling status")
				p.PollNow()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
