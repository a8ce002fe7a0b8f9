package probe

import (
	"errors"
	"fmt"
)

// MB is a binary megabyte, the unit for every size the prober handles
const MB uint64 = 1 << 20

// ErrInvalidBounds is returned when the search range is empty in the wrong direction
var ErrInvalidBounds = errors.New("invalid probe bounds")

// ErrTooLarge is reported for sizes whose byte count the host cannot express
var ErrTooLarge = errors.New("allocation size exceeds platform limits")

// DefaultBounds is the range used when nothing else is configured
var DefaultBounds = Bounds{MinMB: 0, MaxMB: 4096}

// Block is a live memory region handed out by an Allocator
type Block interface {
	// Addr returns the first byte of the region, or 0 for an empty block.
	Addr() uintptr

	// Len returns the size of the region in bytes
	Len() uint64

	// Release returns the region to the host. Calling it twice is a no-op.
	Release() error
}

// Allocator acquires contiguous memory from the host
type Allocator interface {
	// Allocate returns a block of exactly n bytes, or an error if the host
	// refuses the request.
	Allocate(n uint64) (Block, error)

	// Name returns the allocator implementation name
	Name() string
}

// Observer receives every attempt as it happens. It must not retain the
// address range beyond the call: the block is released once it returns.
type Observer func(Attempt)

// Bounds is the search range in megabytes. MaxMB itself is never attempted.
type Bounds struct {
	MinMB uint64 `json:"min_mb"`
	MaxMB uint64 `json:"max_mb"`
}

// Validate checks that the range is well ordered
func (b Bounds) Validate() error {
	if b.MinMB > b.MaxMB {
		return fmt.Errorf("%w: min %d MB is greater than max %d MB", ErrInvalidBounds, b.MinMB, b.MaxMB)
	}
	return nil
}

// Attempt describes one allocation request and its outcome
type Attempt struct {
	SizeMB uint64
	Bytes  uint64
	OK     bool
	Start  uintptr // valid when OK
	End    uintptr // inclusive; equals Start for an empty block
	Err    error   // set when !OK
}

// Result is the outcome of a full search
type Result struct {
	Bounds   Bounds `json:"bounds"`
	LimitMB  uint64 `json:"limit_mb"`
	Attempts int    `json:"attempts"`

	// Failed is false when every size in the range was allocated.
	// LimitMB then equals Bounds.MaxMB and the real ceiling is unknown.
	Failed   bool   `json:"failed"`
	FailedMB uint64 `json:"failed_mb"` // meaningful only when Failed

	// Immediate is set when the very first size in the range failed. In that
	// case LimitMB is MinMB-1, clamped to 0 when MinMB is 0.
	Immediate bool `json:"immediate,omitempty"`
}

// FindLimit walks sizes MinMB..MaxMB-1 in ascending order, allocating and
// releasing each one, and stops at the first size the allocator refuses.
// The returned limit is the last size before the failure, or MaxMB when
// nothing failed. Allocation failures are the expected stopping condition
// and are reported through the Result, never as an error.
func FindLimit(a Allocator, b Bounds, obs Observer) (Result, error) {
	if a == nil {
		return Result{}, errors.New("allocator cannot be nil")
	}
	if err := b.Validate(); err != nil {
		return Result{}, err
	}

	res := Result{Bounds: b}
	for i := b.MinMB; i < b.MaxMB; i++ {
		res.Attempts++
		if ok := try(a, i, obs); ok {
			continue
		}

		res.Failed = true
		res.FailedMB = i
		if i == b.MinMB {
			res.Immediate = true
		}
		if i > 0 {
			res.LimitMB = i - 1
		}
		return res, nil
	}

	res.LimitMB = b.MaxMB
	return res, nil
}

// try performs a single attempt. The block is released on every path,
// including a panicking observer.
func try(a Allocator, sizeMB uint64, obs Observer) bool {
	att := Attempt{SizeMB: sizeMB}

	bytes, ok := toBytes(sizeMB)
	if !ok {
		att.Err = fmt.Errorf("%w: %d MB overflows the byte count", ErrTooLarge, sizeMB)
		notify(obs, att)
		return false
	}
	att.Bytes = bytes

	block, err := a.Allocate(bytes)
	if err != nil {
		att.Err = err
		notify(obs, att)
		return false
	}
	defer block.Release() //nolint:errcheck // release errors do not change the outcome

	att.OK = true
	att.Start = block.Addr()
	att.End = att.Start
	if n := block.Len(); n > 0 {
		att.End = att.Start + uintptr(n-1)
	}
	notify(obs, att)
	return true
}

func notify(obs Observer, att Attempt) {
	if obs != nil {
		obs(att)
	}
}

func toBytes(sizeMB uint64) (uint64, bool) {
	if sizeMB > ^uint64(0)/MB {
		return 0, false
	}
	return sizeMB * MB, true
}

// Chain fans a single attempt out to several observers in order.
// Nil observers are skipped.
func Chain(observers ...Observer) Observer {
	return func(att Attempt) {
		for _, obs := range observers {
			notify(obs, att)
		}
	}
}
