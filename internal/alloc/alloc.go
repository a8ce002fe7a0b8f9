package alloc

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/wasm-oj/wark/internal/probe"
)

// Allocator kinds accepted by New
const (
	KindOS   = "os"
	KindHeap = "heap"
)

var (
	// ErrTooLarge is returned when a request does not fit the platform's address arithmetic
	ErrTooLarge = probe.ErrTooLarge

	// ErrUnknownKind is returned by New for an unrecognised allocator name
	ErrUnknownKind = errors.New("unknown allocator kind")

	// ErrUnavailable is returned by New when the requested kind has no implementation on this platform
	ErrUnavailable = errors.New("allocator not available on this platform")
)

// New creates the allocator named by kind. An empty kind selects the
// platform default: the OS page allocator where one exists, the Go heap otherwise.
func New(kind string) (probe.Allocator, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "":
		if a := platformNewOS(); a != nil {
			return a, nil
		}
		return NewHeap(), nil
	case KindOS:
		if a := platformNewOS(); a != nil {
			return a, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, kind)
	case KindHeap:
		return NewHeap(), nil
	default:
		return nil, fmt.Errorf("%w: %q (expected %q or %q)", ErrUnknownKind, kind, KindOS, KindHeap)
	}
}

// platformNewOS is replaced in platform-specific files (os_unix.go, os_windows.go)
// via build tags. Returning nil means no OS allocator exists here.
var platformNewOS = func() probe.Allocator {
	return nil
}

// checkSize converts a byte count to an int length, refusing sizes the
// platform cannot address.
func checkSize(n uint64) (int, error) {
	if n > math.MaxInt {
		return 0, fmt.Errorf("%w: %d bytes", ErrTooLarge, n)
	}
	return int(n), nil
}

// emptyBlock stands in for a zero-byte request, the way malloc(0) may hand
// back a placeholder instead of failing.
type emptyBlock struct{}

func (emptyBlock) Addr() uintptr  { return 0 }
func (emptyBlock) Len() uint64    { return 0 }
func (emptyBlock) Release() error { return nil }
