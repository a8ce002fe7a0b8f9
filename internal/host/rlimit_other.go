//go:build !linux && !darwin

package host

// AddressSpaceLimit is not available on this platform
func AddressSpaceLimit() (uint64, error) {
	return 0, ErrUnsupported
}

// SetAddressSpaceLimit is not available on this platform
func SetAddressSpaceLimit(bytes uint64) error {
	return ErrUnsupported
}
