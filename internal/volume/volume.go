// Package volume composes a device, block cache, free map, and inode
// store into one mountable unit for the CLI and end-to-end tests.
package volume

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/natefinch/atomic"

	"github.com/calvinalkan/sectorfs/pkg/blockcache"
	"github.com/calvinalkan/sectorfs/pkg/device"
	"github.com/calvinalkan/sectorfs/pkg/freemap"
	"github.com/calvinalkan/sectorfs/pkg/inode"
)

// MinSectors is the smallest formattable volume: room for the free map
// plus at least one inode and one data sector.
const MinSectors = 8

// Volume errors.
var (
	ErrExists     = errors.New("volume: image already exists")
	ErrTooSmall   = errors.New("volume: too few sectors")
	ErrNotMounted = errors.New("volume: not mounted")
)

// Volume is a mounted disk image.
type Volume struct {
	dev    device.Device
	Cache  *blockcache.Cache
	Map    *freemap.Map
	Inodes *inode.Store
}

// Format creates a disk image of the given sector count at path and
// writes a fresh free map into it.
//
// The image file appears atomically (temp file + rename), so a crashed
// format never leaves a half-written image. An existing image is only
// replaced when force is set.
func Format(path string, sectors uint32, force bool) error {
	if sectors < MinSectors {
		return ErrTooSmall
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return ErrExists
		}
	}

	img := make([]byte, int64(sectors)*device.SectorSize)

	if err := atomic.WriteFile(path, bytes.NewReader(img)); err != nil {
		return fmt.Errorf("creating image: %w", err)
	}

	v, err := open(path, 0, false)
	if err != nil {
		return err
	}

	if err := v.Map.Flush(v.Cache); err != nil {
		_ = v.Close()

		return err
	}

	return v.Close()
}

// Open mounts the disk image at path with a cache of cacheSlots slots
// (<= 0 selects the default capacity).
func Open(path string, cacheSlots int) (*Volume, error) {
	return open(path, cacheSlots, true)
}

func open(path string, cacheSlots int, load bool) (*Volume, error) {
	dev, err := device.OpenFile(path)
	if err != nil {
		return nil, err
	}

	v, err := mount(dev, cacheSlots, load)
	if err != nil {
		_ = dev.Close()

		return nil, err
	}

	return v, nil
}

// OpenMem mounts a fresh in-memory volume, pre-formatted. Used by the
// shell's scratch mode and by tests.
func OpenMem(sectors uint32, cacheSlots int) (*Volume, error) {
	if sectors < MinSectors {
		return nil, ErrTooSmall
	}

	return mount(device.NewMem(sectors), cacheSlots, false)
}

func mount(dev device.Device, cacheSlots int, load bool) (*Volume, error) {
	cache := blockcache.New(dev, cacheSlots)
	fmap := freemap.New(dev.SectorCount())

	if load {
		if err := fmap.Load(cache); err != nil {
			return nil, err
		}
	}

	return &Volume{
		dev:    dev,
		Cache:  cache,
		Map:    fmap,
		Inodes: inode.NewStore(cache, fmap),
	}, nil
}

// Close shuts the volume down in order: flush the free map through the
// cache, flush and close the cache, close the device.
func (v *Volume) Close() error {
	if v.dev == nil {
		return ErrNotMounted
	}

	var firstErr error

	if err := v.Map.Flush(v.Cache); err != nil {
		firstErr = err
	}

	if err := v.Cache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	if err := v.dev.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	v.dev = nil

	return firstErr
}
