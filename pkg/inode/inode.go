package inode

import (
	"fmt"
	"sync"

	"github.com/calvinalkan/sectorfs/pkg/device"
)

// Inode is an open file.
//
// At most one Inode exists per device sector; [Store.Open] aliases
// repeated opens to the same record. The zero value is not usable.
type Inode struct {
	store  *Store
	sector uint32

	// mu guards the counters, the removed flag, and disk. Acquired
	// after the store mutex, before any cache call.
	mu             sync.Mutex
	openCount      int
	denyWriteCount int
	removed        bool
	disk           diskInode
}

// Inumber returns the device sector holding the on-disk inode.
func (ino *Inode) Inumber() uint32 {
	return ino.sector
}

// Length returns the file's byte length.
func (ino *Inode) Length() int64 {
	ino.mu.Lock()
	defer ino.mu.Unlock()

	return int64(ino.disk.length)
}

// IsDir reports whether the inode carries the directory flag.
func (ino *Inode) IsDir() bool {
	ino.mu.Lock()
	defer ino.mu.Unlock()

	return ino.disk.isDir
}

// Reopen increments the open count and returns ino, aliasing a further
// logical opener onto the same record.
func (ino *Inode) Reopen() *Inode {
	ino.mu.Lock()
	defer ino.mu.Unlock()

	ino.openCount++

	return ino
}

// Remove marks the inode for deletion. Reclamation of its sectors is
// deferred until the last opener closes.
func (ino *Inode) Remove() {
	ino.mu.Lock()
	defer ino.mu.Unlock()

	ino.removed = true
}

// Close drops one opener.
//
// When the last opener closes, the inode leaves the registry; if it was
// removed, its own sector and every data and indirection sector it
// references return to the allocator.
func (ino *Inode) Close() error {
	s := ino.store

	s.mu.Lock()
	ino.mu.Lock()

	if ino.openCount <= 0 {
		ino.mu.Unlock()
		s.mu.Unlock()
		panic(fmt.Sprintf("inode: close of closed inode %d", ino.sector))
	}

	ino.openCount--
	last := ino.openCount == 0
	removed := ino.removed

	if last {
		delete(s.open, ino.sector)
	}

	ino.mu.Unlock()
	s.mu.Unlock()

	if !last || !removed {
		return nil
	}

	s.alloc.Release(ino.sector, 1)

	return s.deallocate(&ino.disk)
}

// DenyWrite blocks writes to the inode. Each opener may deny at most
// once; exceeding the open count is a fatal programming error.
func (ino *Inode) DenyWrite() {
	ino.mu.Lock()
	defer ino.mu.Unlock()

	ino.denyWriteCount++

	if ino.denyWriteCount > ino.openCount {
		panic(fmt.Sprintf("inode: deny-write count %d exceeds open count %d", ino.denyWriteCount, ino.openCount))
	}
}

// AllowWrite undoes one DenyWrite. An unmatched call is a fatal
// programming error.
func (ino *Inode) AllowWrite() {
	ino.mu.Lock()
	defer ino.mu.Unlock()

	if ino.denyWriteCount <= 0 {
		panic("inode: allow-write without deny-write")
	}

	ino.denyWriteCount--
}

// ReadAt copies up to len(dst) bytes starting at offset into dst,
// returning the count read. The read clamps to [offset, length); a read
// at or past end-of-file returns 0 with no error. Never modifies the
// file.
func (ino *Inode) ReadAt(dst []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, ErrInvalidOffset
	}

	ino.mu.Lock()
	defer ino.mu.Unlock()

	var scratch []byte

	read := 0
	size := len(dst)

	for size > 0 {
		left := int64(ino.disk.length) - offset
		sectorOfs := int(offset % device.SectorSize)
		sectorLeft := device.SectorSize - sectorOfs

		chunk := size
		if int64(chunk) > left {
			chunk = int(left)
		}

		if chunk > sectorLeft {
			chunk = sectorLeft
		}

		if chunk <= 0 {
			break
		}

		sector, err := ino.store.sectorForOffset(&ino.disk, offset)
		if err != nil {
			return read, err
		}

		if sector == SectorNone {
			break
		}

		if sectorOfs == 0 && chunk == device.SectorSize {
			// Full sector straight into the caller's buffer.
			if err := ino.store.cache.Read(sector, dst[read:read+device.SectorSize]); err != nil {
				return read, err
			}
		} else {
			if scratch == nil {
				scratch = make([]byte, device.SectorSize)
			}

			if err := ino.store.cache.Read(sector, scratch); err != nil {
				return read, err
			}

			copy(dst[read:read+chunk], scratch[sectorOfs:])
		}

		size -= chunk
		offset += int64(chunk)
		read += chunk
	}

	return read, nil
}

// WriteAt copies len(src) bytes from src into the file at offset,
// returning the count written.
//
// Under a deny-write hold it writes nothing and returns [ErrWriteDenied].
// A write past end-of-file grows the file first: every sector backing
// [0, offset+len(src)) is reserved and zero-filled, the length updated,
// and the mutated inode record written back through the cache. If the
// reservation fails, nothing is written and the length is unchanged.
func (ino *Inode) WriteAt(src []byte, offset int64) (int, error) {
	if offset < 0 {
		return 0, ErrInvalidOffset
	}

	if len(src) == 0 {
		return 0, nil
	}

	ino.mu.Lock()
	defer ino.mu.Unlock()

	if ino.denyWriteCount > 0 {
		return 0, ErrWriteDenied
	}

	end := offset + int64(len(src))
	if end > int64(ino.disk.length) {
		if err := ino.store.reserve(&ino.disk, end); err != nil {
			return 0, err
		}

		ino.disk.length = int32(end)

		if err := ino.store.writeInode(ino.sector, &ino.disk); err != nil {
			return 0, err
		}
	}

	var scratch []byte

	written := 0
	size := len(src)

	for size > 0 {
		left := int64(ino.disk.length) - offset
		sectorOfs := int(offset % device.SectorSize)
		sectorLeft := device.SectorSize - sectorOfs

		chunk := size
		if int64(chunk) > left {
			chunk = int(left)
		}

		if chunk > sectorLeft {
			chunk = sectorLeft
		}

		if chunk <= 0 {
			break
		}

		sector, err := ino.store.sectorForOffset(&ino.disk, offset)
		if err != nil {
			return written, err
		}

		if sector == SectorNone {
			break
		}

		if sectorOfs == 0 && chunk == device.SectorSize {
			// Full sector straight from the caller's buffer.
			if err := ino.store.cache.Write(sector, src[written:written+device.SectorSize]); err != nil {
				return written, err
			}
		} else {
			if scratch == nil {
				scratch = make([]byte, device.SectorSize)
			}

			// Preserve surrounding bytes if the sector has any;
			// otherwise start from zeros.
			if sectorOfs > 0 || chunk < sectorLeft {
				if err := ino.store.cache.Read(sector, scratch); err != nil {
					return written, err
				}
			} else {
				clear(scratch)
			}

			copy(scratch[sectorOfs:], src[written:written+chunk])

			if err := ino.store.cache.Write(sector, scratch); err != nil {
				return written, err
			}
		}

		size -= chunk
		offset += int64(chunk)
		written += chunk
	}

	return written, nil
}
