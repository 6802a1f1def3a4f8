package main

import (
	"strings"

	sd "github.com/coreos/go-systemd/daemon"
)

const (
	notifyReady    = sd.SdNotifyReady
	notifyStopping = sd.SdNotifyStopping
)

// sdNotify sends state lines such as READY=1 to the service manager named
// by NOTIFY_SOCKET. It reports false when there is no such socket.
func sdNotify(state ...string) (bool, error) {
	return sd.SdNotify(false, strings.Join(state, "\n"))
}
