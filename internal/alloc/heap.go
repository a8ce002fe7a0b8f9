package alloc

import (
	"fmt"
	"runtime/debug"
	"unsafe"

	"github.com/wasm-oj/wark/internal/probe"
)

// Heap allocates from the Go heap.
//
// Only requests the runtime rejects outright (length out of range) come back
// as errors. A request the runtime accepts but cannot back with memory is a
// fatal runtime error, so prefer the OS allocator where it exists.
type Heap struct{}

// NewHeap returns a Go heap allocator
func NewHeap() *Heap {
	return &Heap{}
}

func (h *Heap) Name() string {
	return KindHeap
}

func (h *Heap) Allocate(n uint64) (probe.Block, error) {
	size, err := checkSize(n)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return emptyBlock{}, nil
	}

	buf, err := makeBuffer(size)
	if err != nil {
		return nil, err
	}
	return &heapBlock{buf: buf}, nil
}

func makeBuffer(size int) (_ []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("heap allocation of %d bytes failed: %v", size, r)
		}
	}()
	return make([]byte, size), nil
}

type heapBlock struct {
	buf []byte
}

func (b *heapBlock) Addr() uintptr {
	if len(b.buf) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b.buf[0]))
}

func (b *heapBlock) Len() uint64 {
	return uint64(len(b.buf))
}

// Release drops the buffer and asks the runtime to hand freed pages back to
// the OS so the next attempt starts from the same footprint.
func (b *heapBlock) Release() error {
	if b.buf == nil {
		return nil
	}
	b.buf = nil
	debug.FreeOSMemory()
	return nil
}
