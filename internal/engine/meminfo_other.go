//go:build !linux

package engine

import "errors"

func physicalMemoryBytes() (uint64, error) {
	return 0, errors.New("physical memory size unavailable on this platform")
}
