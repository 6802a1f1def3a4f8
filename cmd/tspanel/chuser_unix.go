//go:build unix

package main

import (
	"errors"
	"fmt"
	osuser "os/user"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// chuser switches the process to the given user, or user:group. Numeric ids
// are accepted for both parts.
func chuser(input string) error {
	givenUser, givenGroup, hasGroup := strings.Cut(input, ":")
	if givenUser == "" {
		return errors.New("user must be given")
	}
	if hasGroup && givenGroup == "" {
		return errors.New("group must not be empty")
	}

	usr, err := lookupUser(givenUser)
	if err != nil {
		return err
	}
	uid, err := strconv.Atoi(usr.Uid)
	if err != nil {
		return fmt.Errorf("invalid uid %q: %w", usr.Uid, err)
	}
	gidString := usr.Gid
	if hasGroup {
		grp, err := lookupGroup(givenGroup)
		if err != nil {
			return err
		}
		gidString = grp.Gid
	}
	gid, err := strconv.Atoi(gidString)
	if err != nil {
		return fmt.Errorf("invalid gid %q: %w", gidString, err)
	}

	if err := unix.Setgroups([]int{gid}); err != nil {
		return fmt.Errorf("failed to setgroups %d: %w", gid, err)
	}
	if err := unix.Setgid(gid); err != nil {
		return fmt.Errorf("failed to setgid %d: %w", gid, err)
	}
	if err := unix.Setuid(uid); err != nil {
		return fmt.Errorf("failed to setuid %d: %w", uid, err)
	}
	return nil
}

func lookupUser(name string) (*osuser.User, error) {
	if _, err := strconv.ParseUint(name, 10, 32); err == nil {
		usr, err := osuser.LookupId(name)
		if err != nil {
			return nil, fmt.Errorf("failed to lookup user by id %q: %w", name, err)
		}
		return usr, nil
	}
	usr, err := osuser.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user by name %q: %w", name, err)
	}
	return usr, nil
}

func lookupGroup(name string) (*osuser.Group, error) {
	if _, err := strconv.ParseUint(name, 10, 32); err == nil {
		grp, err := osuser.LookupGroupId(name)
		if err != nil {
			return nil, fmt.Errorf("failed to lookup group by id %q: %w", name, err)
		}
		return grp, nil
	}
	grp, err := osuser.LookupGroup(name)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup group by name %q: %w", name, err)
	}
	return grp, nil
}
