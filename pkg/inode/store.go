// Package inode turns a linear stream of bytes into a tree of direct,
// singly-indirect, and doubly-indirect sector pointers with transparent
// on-demand growth.
//
// The on-disk inode occupies exactly one sector: 123 direct pointers, one
// indirect pointer (128 pointers per indirect sector), one doubly-indirect
// pointer, an is-dir flag, the byte length, and a magic. Maximum file size
// is (123 + 128 + 128*128) * 512 = 8,517,120 bytes.
//
// A [Store] is the process-wide registry of open inodes: opening the same
// sector twice aliases to one in-memory [Inode]. All device I/O goes
// through the store's block cache; sectors come from and return to its
// allocator.
//
// # Concurrency
//
// The store mutex guards the registry; each inode carries its own mutex
// guarding its counters and its cached on-disk record. Lock order is
// store, then inode, then cache — the cache mutex is a leaf and is never
// held across registry or inode work.
package inode

import (
	"fmt"
	"sync"

	"github.com/calvinalkan/sectorfs/pkg/blockcache"
	"github.com/calvinalkan/sectorfs/pkg/device"
)

// Allocator hands out and takes back device sectors.
// Implemented by freemap.Map. This package only ever asks for n = 1.
type Allocator interface {
	Allocate(n uint32) (uint32, error)
	Release(first, n uint32)
}

// Store is the registry of open inodes on one volume.
type Store struct {
	mu    sync.Mutex
	cache *blockcache.Cache
	alloc Allocator
	open  map[uint32]*Inode
}

// NewStore returns an empty registry over cache and alloc.
func NewStore(cache *blockcache.Cache, alloc Allocator) *Store {
	return &Store{
		cache: cache,
		alloc: alloc,
		open:  make(map[uint32]*Inode),
	}
}

// Create initializes an inode of the given length at sector and writes it
// through the cache. The caller supplies sector, obtained from the
// allocator. Every data sector backing [0, length) is allocated and
// zero-filled.
//
// On allocation failure the error propagates and the inode sector is not
// written; sectors already allocated are not rolled back.
func (s *Store) Create(sector uint32, length int64, isDir bool) error {
	if length < 0 {
		return ErrInvalidOffset
	}

	d := diskInode{isDir: isDir, length: int32(length)}

	if err := s.reserve(&d, length); err != nil {
		return err
	}

	if err := s.cache.Write(sector, encodeInode(&d)); err != nil {
		return fmt.Errorf("writing inode %d: %w", sector, err)
	}

	return nil
}

// Open returns the in-memory inode for sector.
//
// If the sector is already open the existing inode is returned with its
// open count incremented. Otherwise the on-disk record is loaded through
// the cache; a magic mismatch yields [ErrCorrupt].
func (s *Store) Open(sector uint32) (*Inode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ino, ok := s.open[sector]; ok {
		return ino.Reopen(), nil
	}

	buf := make([]byte, device.SectorSize)
	if err := s.cache.Read(sector, buf); err != nil {
		return nil, fmt.Errorf("reading inode %d: %w", sector, err)
	}

	d, err := decodeInode(buf)
	if err != nil {
		return nil, fmt.Errorf("inode %d: %w", sector, err)
	}

	ino := &Inode{
		store:     s,
		sector:    sector,
		openCount: 1,
		disk:      d,
	}
	s.open[sector] = ino

	return ino, nil
}

// OpenInodes returns the number of distinct inodes currently open.
func (s *Store) OpenInodes() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.open)
}

// writeInode writes d to its sector through the cache.
func (s *Store) writeInode(sector uint32, d *diskInode) error {
	if err := s.cache.Write(sector, encodeInode(d)); err != nil {
		return fmt.Errorf("writing inode %d: %w", sector, err)
	}

	return nil
}
