// SPDX-License-Identifier: Apache-2.0

package ring

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MappedFile is a TotalSize region backed by a file opened under
// /dev/shm, standing in for the fixed physical address the original
// reserved at the SoC level — Go has no way to claim an arbitrary
// physical address, so the two domains instead agree on a path.
type MappedFile struct {
	file *os.File
	mem  []byte
}

// OpenShared opens (creating if needed) the shared-memory-backed file
// at path, sizes it to TotalSize, and mmaps it. Both the brain and the
// muscle process call this with the same path; whichever runs first
// creates the file.
func OpenShared(path string) (*MappedFile, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("ring: open %s: %w", path, err)
	}

	if err := f.Truncate(int64(TotalSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("ring: truncate %s: %w", path, err)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, TotalSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ring: mmap %s: %w", path, err)
	}

	return &MappedFile{file: f, mem: mem}, nil
}

// Bytes returns the mapped region for use with New.
func (m *MappedFile) Bytes() []byte { return m.mem }

// Close unmaps the region and closes the backing file. It does not
// remove the file; the other domain may still be attached to it.
func (m *MappedFile) Close() error {
	if err := unix.Munmap(m.mem); err != nil {
		m.file.Close()
		return fmt.Errorf("ring: munmap: %w", err)
	}
	return m.file.Close()
}
