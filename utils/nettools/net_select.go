//go:build darwin || linux

package nettools

import (
	"golang.org/x/sys/unix"
)

var _ = func() error { // make sure this executes before func init()
	supported[ModeSelect] = selectProbe
	return nil
}()

const fdSetSize = 1024

func selectProbe(fd int) Liveness {
	if fd >= fdSetSize {
		return Unknown
	}
	var set unix.FdSet
	set.Set(fd)
	tv := unix.Timeval{} // don't wait
	n, err := unix.Select(fd+1, &set, nil, nil, &tv)
	if err != nil {
		return Unknown
	}
	if n == 0 || !set.IsSet(fd) {
		return Alive
	}
	return peek(fd)
}
