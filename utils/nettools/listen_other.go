//go:build !darwin && !linux

package nettools

import (
	"errors"
	"syscall"
)

func reusePortControl(network, address string, c syscall.RawConn) error {
	return errors.New("nettools: SO_REUSEPORT is not supported on this platform")
}
