//go:build windows

package alloc

import (
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/wasm-oj/wark/internal/probe"
)

func init() {
	// Register the VirtualAlloc allocator as the OS allocator
	platformNewOS = func() probe.Allocator {
		return &VirtualAllocator{}
	}
}

// VirtualAllocator reserves and commits pages with VirtualAlloc, so a
// request is refused as soon as it exceeds the commit limit or the job's
// memory quota.
type VirtualAllocator struct{}

func (v *VirtualAllocator) Name() string {
	return KindOS
}

func (v *VirtualAllocator) Allocate(n uint64) (probe.Block, error) {
	size, err := checkSize(n)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		return emptyBlock{}, nil
	}

	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("VirtualAlloc %d bytes: %w", size, err)
	}
	if addr == 0 {
		return nil, fmt.Errorf("VirtualAlloc %d bytes returned a null address", size)
	}
	return &virtualBlock{addr: addr, size: uint64(size)}, nil
}

type virtualBlock struct {
	addr uintptr
	size uint64
}

func (b *virtualBlock) Addr() uintptr {
	return b.addr
}

func (b *virtualBlock) Len() uint64 {
	return b.size
}

func (b *virtualBlock) Release() error {
	if b.addr == 0 {
		return nil
	}
	addr := b.addr
	b.addr = 0
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("VirtualFree: %w", err)
	}
	return nil
}
