package inode

import (
	"fmt"

	"github.com/calvinalkan/sectorfs/pkg/device"
)

// sectorForOffset resolves the byte offset pos within d to the device
// sector holding it, or [SectorNone] if pos lies outside [0, length).
//
// A live pointer value of 0 inside [0, length) would be a hole; growth
// allocates and zero-fills eagerly from offset 0 up, so holes do not
// occur here.
func (s *Store) sectorForOffset(d *diskInode, pos int64) (uint32, error) {
	if pos < 0 || pos >= int64(d.length) {
		return SectorNone, nil
	}

	return s.sectorForIndex(d, uint32(pos/device.SectorSize))
}

// sectorForIndex resolves a data-sector index through the pointer tree,
// reading indirection sectors through the cache.
//
// Every pointer passes through livePtr so an unallocated slot surfaces
// as [SectorNone] instead of sector 0 leaking into I/O.
func (s *Store) sectorForIndex(d *diskInode, idx uint32) (uint32, error) {
	if idx < DirectCount {
		return livePtr(d.direct[idx]), nil
	}

	idx -= DirectCount

	if idx < PtrsPerSector {
		if livePtr(d.indirect) == SectorNone {
			return SectorNone, nil
		}

		var ptrs ptrBlock
		if err := s.readPtrs(d.indirect, &ptrs); err != nil {
			return SectorNone, err
		}

		return livePtr(ptrs[idx]), nil
	}

	idx -= PtrsPerSector

	if idx < PtrsPerSector*PtrsPerSector {
		if livePtr(d.doubly) == SectorNone {
			return SectorNone, nil
		}

		// Two separate blocks: the first-level pointers stay intact
		// after the second-level read.
		var first, second ptrBlock

		if err := s.readPtrs(d.doubly, &first); err != nil {
			return SectorNone, err
		}

		if livePtr(first[idx/PtrsPerSector]) == SectorNone {
			return SectorNone, nil
		}

		if err := s.readPtrs(first[idx/PtrsPerSector], &second); err != nil {
			return SectorNone, err
		}

		return livePtr(second[idx%PtrsPerSector]), nil
	}

	return SectorNone, nil
}

// livePtr tags an on-disk pointer slot: 0 means unallocated.
func livePtr(p uint32) uint32 {
	if p == 0 {
		return SectorNone
	}

	return p
}

// readPtrs reads one indirect sector's 128 pointers through the cache.
func (s *Store) readPtrs(sector uint32, ptrs *ptrBlock) error {
	buf := make([]byte, device.SectorSize)
	if err := s.cache.Read(sector, buf); err != nil {
		return fmt.Errorf("reading indirect sector %d: %w", sector, err)
	}

	decodePtrs(buf, ptrs)

	return nil
}

// writePtrs writes one indirect sector's 128 pointers through the cache.
func (s *Store) writePtrs(sector uint32, ptrs *ptrBlock) error {
	buf := make([]byte, device.SectorSize)
	encodePtrs(ptrs, buf)

	if err := s.cache.Write(sector, buf); err != nil {
		return fmt.Errorf("writing indirect sector %d: %w", sector, err)
	}

	return nil
}
