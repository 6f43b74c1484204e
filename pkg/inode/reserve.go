package inode

import (
	"fmt"

	"github.com/calvinalkan/sectorfs/pkg/device"
)

// zeroSector is the payload written into every newly-allocated data
// sector, so a read of a region that was never written returns zeros.
var zeroSector [device.SectorSize]byte

// reserve ensures every sector backing [0, length) is allocated and
// recorded in d's pointer tree, zero-filling each new data sector.
//
// Used at creation (from length 0) and at write-time growth. Allocation
// failure propagates without rollback; sectors already recorded stay in
// the tree and are reclaimed at removal.
func (s *Store) reserve(d *diskInode, length int64) error {
	if length < 0 {
		return ErrInvalidOffset
	}

	if length > MaxFileSize {
		return ErrTooLarge
	}

	n := sectorsFor(length)

	l := minU32(n, DirectCount)
	for i := uint32(0); i < l; i++ {
		if d.direct[i] != 0 {
			continue
		}

		sector, err := s.alloc.Allocate(1)
		if err != nil {
			return err
		}

		if err := s.cache.Write(sector, zeroSector[:]); err != nil {
			return fmt.Errorf("zeroing sector %d: %w", sector, err)
		}

		d.direct[i] = sector
	}

	n -= l
	if n == 0 {
		return nil
	}

	l = minU32(n, PtrsPerSector)
	if err := s.reserveIndirect(&d.indirect, l, 1); err != nil {
		return err
	}

	n -= l
	if n == 0 {
		return nil
	}

	l = minU32(n, PtrsPerSector*PtrsPerSector)
	if err := s.reserveIndirect(&d.doubly, l, 2); err != nil {
		return err
	}

	n -= l
	if n == 0 {
		return nil
	}

	return ErrTooLarge
}

// reserveIndirect ensures n data sectors are reachable below *entry.
//
// level 0 is a data sector; level 1 an indirect sector of data pointers;
// level 2 a doubly-indirect sector of indirect pointers. A zero *entry is
// allocated and zero-filled before descent.
func (s *Store) reserveIndirect(entry *uint32, n uint32, level int) error {
	if level == 0 {
		if *entry != 0 {
			return nil
		}

		sector, err := s.alloc.Allocate(1)
		if err != nil {
			return err
		}

		if err := s.cache.Write(sector, zeroSector[:]); err != nil {
			return fmt.Errorf("zeroing sector %d: %w", sector, err)
		}

		*entry = sector

		return nil
	}

	if *entry == 0 {
		sector, err := s.alloc.Allocate(1)
		if err != nil {
			return err
		}

		if err := s.cache.Write(sector, zeroSector[:]); err != nil {
			return fmt.Errorf("zeroing indirect sector %d: %w", sector, err)
		}

		*entry = sector
	}

	var ptrs ptrBlock
	if err := s.readPtrs(*entry, &ptrs); err != nil {
		return err
	}

	unit := uint32(1)
	if level == 2 {
		unit = PtrsPerSector
	}

	for i := 0; n > 0; i++ {
		sub := minU32(n, unit)

		if err := s.reserveIndirect(&ptrs[i], sub, level-1); err != nil {
			return err
		}

		n -= sub
	}

	return s.writePtrs(*entry, &ptrs)
}

// deallocate returns every data and indirection sector recorded for d's
// [0, length) to the allocator, descending the pointer tree symmetrically
// to reserve.
func (s *Store) deallocate(d *diskInode) error {
	n := sectorsFor(int64(d.length))

	l := minU32(n, DirectCount)
	for i := uint32(0); i < l; i++ {
		s.alloc.Release(d.direct[i], 1)
	}

	n -= l
	if n == 0 {
		return nil
	}

	l = minU32(n, PtrsPerSector)
	if err := s.releaseIndirect(d.indirect, l, 1); err != nil {
		return err
	}

	n -= l
	if n == 0 {
		return nil
	}

	l = minU32(n, PtrsPerSector*PtrsPerSector)

	return s.releaseIndirect(d.doubly, l, 2)
}

// releaseIndirect returns the n data sectors below entry, then entry
// itself, to the allocator.
func (s *Store) releaseIndirect(entry uint32, n uint32, level int) error {
	if level == 0 {
		s.alloc.Release(entry, 1)

		return nil
	}

	var ptrs ptrBlock
	if err := s.readPtrs(entry, &ptrs); err != nil {
		return err
	}

	unit := uint32(1)
	if level == 2 {
		unit = PtrsPerSector
	}

	for i := 0; n > 0; i++ {
		sub := minU32(n, unit)

		if err := s.releaseIndirect(ptrs[i], sub, level-1); err != nil {
			return err
		}

		n -= sub
	}

	s.alloc.Release(entry, 1)

	return nil
}

func minU32(a, b uint32) uint32 {
	if a < b {
		return a
	}

	return b
}
