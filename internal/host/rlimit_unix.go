//go:build linux || darwin

package host

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// RLIM_INFINITY differs between Linux and Darwin; anything this large is unlimited.
const unlimitedFloor = 1 << 62

// AddressSpaceLimit returns this process's soft RLIMIT_AS in bytes, or 0 when unlimited
func AddressSpaceLimit() (uint64, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &rlim); err != nil {
		return 0, fmt.Errorf("getrlimit RLIMIT_AS: %w", err)
	}
	if rlim.Cur >= unlimitedFloor {
		return 0, nil
	}
	return rlim.Cur, nil
}

// SetAddressSpaceLimit lowers this process's soft RLIMIT_AS so that mappings
// beyond the given size are refused. The hard limit is left untouched, and
// the soft limit can never be raised above it.
func SetAddressSpaceLimit(bytes uint64) error {
	if bytes == 0 {
		return fmt.Errorf("address space limit must be positive")
	}

	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_AS, &rlim); err != nil {
		return fmt.Errorf("getrlimit RLIMIT_AS: %w", err)
	}
	if bytes > rlim.Max {
		return fmt.Errorf("address space limit %s exceeds hard limit %s", FormatBytes(bytes), FormatBytes(rlim.Max))
	}

	rlim.Cur = bytes
	if err := unix.Setrlimit(unix.RLIMIT_AS, &rlim); err != nil {
		return fmt.Errorf("setrlimit RLIMIT_AS: %w", err)
	}
	return nil
}
