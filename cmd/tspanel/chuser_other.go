//go:build !unix

package main

import "errors"

func chuser(user string) error {
	return errors.New("setting uid/gid is not supported on this platform")
}
