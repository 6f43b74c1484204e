// Package freemap tracks which device sectors are allocated.
//
// The map is a bitmap with one bit per sector, set while the sector is
// allocated. It persists in a reserved run of sectors starting at sector
// 0 of its own device, so sector 0 is never handed out as a data sector.
// That reservation is what lets higher layers use pointer value 0 to mean
// "unallocated".
//
// The map has its own mutex; it is safe to call from any goroutine.
// Allocate, Release, and Free take no other lock while holding it; Load
// and Flush hold it across their cache calls, which take the cache mutex.
package freemap

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"

	"github.com/calvinalkan/sectorfs/pkg/blockcache"
	"github.com/calvinalkan/sectorfs/pkg/device"
)

// Freemap errors.
var (
	// ErrNoSpace indicates the device has no free run of the requested size.
	ErrNoSpace = errors.New("freemap: no free sectors")
	// ErrNotFormatted indicates a loaded bitmap without its own reservation,
	// i.e. an image that was never formatted.
	ErrNotFormatted = errors.New("freemap: image not formatted")
)

// Map is a bitmap free-sector map.
type Map struct {
	mu       sync.Mutex
	bitmap   []byte // bit i set = sector i allocated, LSB-first within a byte
	sectors  uint32 // total sectors tracked
	reserved uint32 // sectors [0, reserved) hold the bitmap itself
}

// SectorsFor returns how many sectors a bitmap covering total sectors
// occupies on disk.
func SectorsFor(total uint32) uint32 {
	bytes := (total + 7) / 8

	return (bytes + device.SectorSize - 1) / device.SectorSize
}

// New returns a fresh map for a device of total sectors, with the map's
// own on-disk run [0, SectorsFor(total)) already marked allocated.
func New(total uint32) *Map {
	reserved := SectorsFor(total)

	m := &Map{
		bitmap:   make([]byte, int(reserved)*device.SectorSize),
		sectors:  total,
		reserved: reserved,
	}

	for s := uint32(0); s < reserved; s++ {
		m.set(s)
	}

	return m
}

// SectorCount returns the number of sectors the map tracks.
func (m *Map) SectorCount() uint32 {
	return m.sectors
}

// Reserved returns the number of sectors occupied by the map itself.
func (m *Map) Reserved() uint32 {
	return m.reserved
}

// Allocate reserves n contiguous sectors and returns the first.
// Returns [ErrNoSpace] if no free run of n sectors exists.
func (m *Map) Allocate(n uint32) (uint32, error) {
	if n == 0 || n > m.sectors {
		return 0, ErrNoSpace
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	run := uint32(0)

	for s := uint32(0); s < m.sectors; s++ {
		if m.isSet(s) {
			run = 0

			continue
		}

		run++

		if run == n {
			first := s - n + 1
			for i := first; i <= s; i++ {
				m.set(i)
			}

			return first, nil
		}
	}

	return 0, ErrNoSpace
}

// Release returns n sectors starting at first to the free pool.
//
// Releasing a sector that is out of range, already free, or part of the
// map's own reservation is a fatal programming error.
func (m *Map) Release(first, n uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for s := first; s < first+n; s++ {
		if s < m.reserved || s >= m.sectors {
			panic(fmt.Sprintf("freemap: release of sector %d outside [%d, %d)", s, m.reserved, m.sectors))
		}

		if !m.isSet(s) {
			panic(fmt.Sprintf("freemap: release of unallocated sector %d", s))
		}

		m.clear(s)
	}
}

// Free returns the number of unallocated sectors.
func (m *Map) Free() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	allocated := 0
	for _, b := range m.bitmap {
		allocated += bits.OnesCount8(b)
	}

	return m.sectors - uint32(allocated)
}

// Load reads the bitmap from its reserved run through the cache,
// replacing the in-memory state. Returns [ErrNotFormatted] if the loaded
// bitmap does not cover its own reservation.
func (m *Map) Load(cache *blockcache.Cache) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for s := uint32(0); s < m.reserved; s++ {
		if err := cache.Read(s, m.bitmap[int(s)*device.SectorSize:int(s+1)*device.SectorSize]); err != nil {
			return fmt.Errorf("loading free map: %w", err)
		}
	}

	for s := uint32(0); s < m.reserved; s++ {
		if !m.isSet(s) {
			return ErrNotFormatted
		}
	}

	return nil
}

// Flush writes the bitmap into its reserved run through the cache.
func (m *Map) Flush(cache *blockcache.Cache) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for s := uint32(0); s < m.reserved; s++ {
		if err := cache.Write(s, m.bitmap[int(s)*device.SectorSize:int(s+1)*device.SectorSize]); err != nil {
			return fmt.Errorf("flushing free map: %w", err)
		}
	}

	return nil
}

func (m *Map) isSet(sector uint32) bool {
	return m.bitmap[sector/8]&(1<<(sector%8)) != 0
}

func (m *Map) set(sector uint32) {
	m.bitmap[sector/8] |= 1 << (sector % 8)
}

func (m *Map) clear(sector uint32) {
	m.bitmap[sector/8] &^= 1 << (sector % 8)
}
