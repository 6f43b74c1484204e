package blockcache_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/calvinalkan/sectorfs/pkg/blockcache"
	"github.com/calvinalkan/sectorfs/pkg/device"
)

// sectorOf returns one sector filled with b.
func sectorOf(b byte) []byte {
	return bytes.Repeat([]byte{b}, device.SectorSize)
}

func Test_Read_Returns_Written_Bytes_Regardless_Of_Evictions(t *testing.T) {
	t.Parallel()

	// Capacity 4 forces constant eviction across 32 sectors.
	dev := device.NewMem(32)
	cache := blockcache.New(dev, 4)

	for s := uint32(0); s < 32; s++ {
		if err := cache.Write(s, sectorOf(byte(s))); err != nil {
			t.Fatal(err)
		}
	}

	dst := make([]byte, device.SectorSize)

	for s := uint32(0); s < 32; s++ {
		if err := cache.Read(s, dst); err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(dst, sectorOf(byte(s))) {
			t.Fatalf("sector %d: read bytes differ from written bytes", s)
		}
	}
}

func Test_Close_Flushes_Every_Dirty_Slot(t *testing.T) {
	t.Parallel()

	dev := device.NewMem(128)
	cache := blockcache.New(dev, 64)

	for s := uint32(0); s < 64; s++ {
		if err := cache.Write(s, sectorOf(byte(s))); err != nil {
			t.Fatal(err)
		}
	}

	if err := cache.Close(); err != nil {
		t.Fatal(err)
	}

	// Every write must be on the device now.
	dst := make([]byte, device.SectorSize)

	for s := uint32(0); s < 64; s++ {
		if err := dev.ReadSector(s, dst); err != nil {
			t.Fatal(err)
		}

		if !bytes.Equal(dst, sectorOf(byte(s))) {
			t.Fatalf("sector %d not flushed", s)
		}
	}
}

func Test_Operations_Return_ErrClosed_After_Close(t *testing.T) {
	t.Parallel()

	cache := blockcache.New(device.NewMem(8), 4)

	if err := cache.Close(); err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, device.SectorSize)

	if err := cache.Read(0, buf); !errors.Is(err, blockcache.ErrClosed) {
		t.Fatalf("Read error = %v, want ErrClosed", err)
	}

	if err := cache.Write(0, buf); !errors.Is(err, blockcache.ErrClosed) {
		t.Fatalf("Write error = %v, want ErrClosed", err)
	}

	if err := cache.Flush(); !errors.Is(err, blockcache.ErrClosed) {
		t.Fatalf("Flush error = %v, want ErrClosed", err)
	}

	if err := cache.Close(); !errors.Is(err, blockcache.ErrClosed) {
		t.Fatalf("second Close error = %v, want ErrClosed", err)
	}
}

func Test_Exactly_One_Victim_When_Capacity_Exceeded(t *testing.T) {
	t.Parallel()

	dev := device.NewMem(128)
	cache := blockcache.New(dev, 64)

	// Fill every slot with a dirty sector.
	for s := uint32(0); s < 64; s++ {
		if err := cache.Write(s, sectorOf(byte(s+1))); err != nil {
			t.Fatal(err)
		}
	}

	if got := cache.Stats().Evictions; got != 0 {
		t.Fatalf("evictions before overflow = %d, want 0", got)
	}

	// The 65th distinct sector selects exactly one victim. All reference
	// bits are set, so the clock sweeps once and takes the oldest slot.
	if err := cache.Write(64, sectorOf(0xEE)); err != nil {
		t.Fatal(err)
	}

	stats := cache.Stats()
	if stats.Evictions != 1 {
		t.Fatalf("evictions = %d, want 1", stats.Evictions)
	}

	if stats.WriteBacks != 1 {
		t.Fatalf("write-backs = %d, want 1", stats.WriteBacks)
	}

	// The victim was dirty; its content must be observable on the device.
	dst := make([]byte, device.SectorSize)
	if err := dev.ReadSector(0, dst); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(dst, sectorOf(1)) {
		t.Fatal("evicted sector content not written back to device")
	}
}

func Test_Flush_Clears_Dirty_But_Keeps_Slots_Valid(t *testing.T) {
	t.Parallel()

	dev := device.NewMem(8)
	cache := blockcache.New(dev, 4)

	if err := cache.Write(2, sectorOf(0x7F)); err != nil {
		t.Fatal(err)
	}

	if err := cache.Flush(); err != nil {
		t.Fatal(err)
	}

	dst := make([]byte, device.SectorSize)
	if err := dev.ReadSector(2, dst); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(dst, sectorOf(0x7F)) {
		t.Fatal("dirty slot not written back on Flush")
	}

	before := cache.Stats().Hits

	if err := cache.Read(2, dst); err != nil {
		t.Fatal(err)
	}

	if got := cache.Stats().Hits; got != before+1 {
		t.Fatalf("hits = %d, want %d (slot must stay valid after Flush)", got, before+1)
	}
}

func Test_Hit_And_Miss_Counters_Track_Accesses(t *testing.T) {
	t.Parallel()

	cache := blockcache.New(device.NewMem(8), 4)
	buf := make([]byte, device.SectorSize)

	if err := cache.Read(1, buf); err != nil {
		t.Fatal(err)
	}

	if err := cache.Read(1, buf); err != nil {
		t.Fatal(err)
	}

	stats := cache.Stats()
	if stats.Misses != 1 || stats.Hits != 1 {
		t.Fatalf("stats = %d hits, %d misses, want 1 hit, 1 miss", stats.Hits, stats.Misses)
	}
}

func Test_Read_Propagates_Device_Errors(t *testing.T) {
	t.Parallel()

	cache := blockcache.New(device.NewMem(4), 4)
	buf := make([]byte, device.SectorSize)

	if err := cache.Read(99, buf); !errors.Is(err, device.ErrOutOfRange) {
		t.Fatalf("error = %v, want ErrOutOfRange", err)
	}
}

func Test_Read_Rejects_Short_Buffer(t *testing.T) {
	t.Parallel()

	cache := blockcache.New(device.NewMem(4), 4)

	if err := cache.Read(0, make([]byte, 10)); !errors.Is(err, device.ErrBufferSize) {
		t.Fatalf("error = %v, want ErrBufferSize", err)
	}
}

func Test_Default_Capacity_Used_When_Unset(t *testing.T) {
	t.Parallel()

	cache := blockcache.New(device.NewMem(4), 0)

	if got := cache.Capacity(); got != blockcache.DefaultCapacity {
		t.Fatalf("Capacity = %d, want %d", got, blockcache.DefaultCapacity)
	}
}
