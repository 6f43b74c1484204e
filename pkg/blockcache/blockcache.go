// Package blockcache provides a fixed-capacity write-back cache of device
// sectors.
//
// The cache is fully associative: any sector may occupy any slot. Eviction
// is clock/second-chance. Writes dirty the cached copy only; dirty slots
// reach the device on eviction, on [Cache.Flush], or on [Cache.Close].
//
// A single mutex serializes every operation, including the clock hand and
// the statistics counters. The cache is the sole mediator between higher
// layers and the device: once a device is wrapped, nothing else should
// touch it.
//
// # Error Handling
//
// Device errors propagate wrapped; classify with errors.Is. After
// [Cache.Close], every operation returns [ErrClosed].
package blockcache

import (
	"fmt"
	"sync"

	"github.com/calvinalkan/sectorfs/pkg/device"
)

// DefaultCapacity is the slot count used when New is given capacity <= 0.
const DefaultCapacity = 64

// slot is one cache entry.
//
// Invariants: valid implies sector names a real device sector;
// dirty implies valid. access is the clock reference bit.
type slot struct {
	data   [device.SectorSize]byte
	sector uint32
	valid  bool
	dirty  bool
	access bool
}

// Stats are cumulative operation counters, taken under the cache mutex.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	WriteBacks uint64
}

// Cache is a write-back sector cache over a [device.Device].
type Cache struct {
	mu     sync.Mutex
	dev    device.Device
	slots  []slot
	hand   int
	closed bool
	stats  Stats
}

// New returns a cache of the given capacity over dev.
// capacity <= 0 selects [DefaultCapacity]. Every slot starts invalid.
func New(dev device.Device, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Cache{
		dev:   dev,
		slots: make([]slot, capacity),
	}
}

// Capacity returns the slot count.
func (c *Cache) Capacity() int {
	return len(c.slots)
}

// Read copies sector into dst. len(dst) must be [device.SectorSize].
//
// On a hit the slot's reference bit is set and the cached copy is
// returned. On a miss a victim slot is chosen (written back first if
// dirty) and refilled from the device.
func (c *Cache) Read(sector uint32, dst []byte) error {
	if len(dst) != device.SectorSize {
		return device.ErrBufferSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.slotFor(sector)
	if err != nil {
		return err
	}

	s.access = true
	copy(dst, s.data[:])

	return nil
}

// Write copies src into the cached copy of sector and marks it dirty.
// len(src) must be [device.SectorSize].
//
// On a miss the slot is first filled from the device. The higher layer
// only ever calls Write with a full sector of replacement bytes, so the
// fill is conservative, but it keeps the slot consistent with device
// contents at every offset.
func (c *Cache) Write(sector uint32, src []byte) error {
	if len(src) != device.SectorSize {
		return device.ErrBufferSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.slotFor(sector)
	if err != nil {
		return err
	}

	s.access = true
	s.dirty = true
	copy(s.data[:], src)

	return nil
}

// Flush writes every dirty slot back to the device and clears its dirty
// bit. Slots stay valid.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.flushLocked()
}

// Close flushes every dirty slot and shuts the cache down. Any operation
// after Close returns [ErrClosed]. The device is not closed.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	err := c.flushLocked()
	c.closed = true

	return err
}

// Stats returns a snapshot of the operation counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.stats
}

func (c *Cache) flushLocked() error {
	if c.closed {
		return ErrClosed
	}

	for i := range c.slots {
		s := &c.slots[i]
		if !s.valid || !s.dirty {
			continue
		}

		if err := c.dev.WriteSector(s.sector, s.data[:]); err != nil {
			return fmt.Errorf("blockcache: flushing sector %d: %w", s.sector, err)
		}

		s.dirty = false
		c.stats.WriteBacks++
	}

	return nil
}

// slotFor returns the valid slot holding sector, filling one from the
// device on a miss. Callers hold the mutex.
func (c *Cache) slotFor(sector uint32) (*slot, error) {
	if c.closed {
		return nil, ErrClosed
	}

	if s := c.find(sector); s != nil {
		c.stats.Hits++

		return s, nil
	}

	c.stats.Misses++

	s, err := c.victim()
	if err != nil {
		return nil, err
	}

	if err := c.dev.ReadSector(sector, s.data[:]); err != nil {
		return nil, fmt.Errorf("blockcache: filling sector %d: %w", sector, err)
	}

	s.sector = sector
	s.valid = true

	return s, nil
}

// find returns the valid slot holding sector, or nil on a miss.
func (c *Cache) find(sector uint32) *slot {
	for i := range c.slots {
		if c.slots[i].valid && c.slots[i].sector == sector {
			return &c.slots[i]
		}
	}

	return nil
}

// victim selects a slot for refill using clock/second-chance.
//
// The hand persists across calls and advances monotonically modulo
// capacity. An invalid slot at the hand wins immediately; a referenced
// slot gets its bit cleared and a reprieve; the first unreferenced slot
// is written back if dirty, invalidated, and returned.
func (c *Cache) victim() (*slot, error) {
	for {
		s := &c.slots[c.hand]
		c.hand = (c.hand + 1) % len(c.slots)

		if !s.valid {
			return s, nil
		}

		if s.access {
			s.access = false

			continue
		}

		if s.dirty {
			if err := c.dev.WriteSector(s.sector, s.data[:]); err != nil {
				return nil, fmt.Errorf("blockcache: evicting sector %d: %w", s.sector, err)
			}

			s.dirty = false
			c.stats.WriteBacks++
		}

		s.valid = false
		c.stats.Evictions++

		return s, nil
	}
}
