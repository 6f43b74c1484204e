package inode

import (
	"encoding/binary"
	"fmt"

	"github.com/calvinalkan/sectorfs/pkg/device"
)

// On-disk layout constants. The inode record occupies exactly one sector.
const (
	// DirectCount is the number of sector pointers stored inline.
	DirectCount = 123

	// PtrsPerSector is the number of pointers in one indirect sector.
	PtrsPerSector = device.SectorSize / 4

	// MaxSectors is the largest number of data sectors one inode can address.
	MaxSectors = DirectCount + PtrsPerSector + PtrsPerSector*PtrsPerSector

	// MaxFileSize is the largest byte length one inode can address.
	MaxFileSize = int64(MaxSectors) * device.SectorSize

	// inodeMagic identifies an inode sector.
	inodeMagic = 0x494E4F44

	// SectorNone is the sentinel for "no sector".
	SectorNone = ^uint32(0)
)

// Field offsets within the inode sector (bytes). Pointer fields are
// little-endian uint32 sector numbers with 0 meaning "unallocated";
// sector 0 always belongs to the free map, so 0 is safely reserved.
const (
	offDirect   = 0   // [DirectCount]uint32
	offIndirect = 492 // uint32
	offDoubly   = 496 // uint32
	offIsDir    = 500 // byte, 0/1; bytes 501-503 are padding
	offLength   = 504 // int32
	offMagic    = 508 // uint32
)

// diskInode mirrors the on-disk inode record.
type diskInode struct {
	direct   [DirectCount]uint32
	indirect uint32
	doubly   uint32
	isDir    bool
	length   int32
}

// ptrBlock is the payload of one indirect sector.
type ptrBlock [PtrsPerSector]uint32

// encodeInode serializes d into a one-sector buffer, magic included.
func encodeInode(d *diskInode) []byte {
	buf := make([]byte, device.SectorSize)

	for i, p := range d.direct {
		binary.LittleEndian.PutUint32(buf[offDirect+4*i:], p)
	}

	binary.LittleEndian.PutUint32(buf[offIndirect:], d.indirect)
	binary.LittleEndian.PutUint32(buf[offDoubly:], d.doubly)

	if d.isDir {
		buf[offIsDir] = 1
	}

	binary.LittleEndian.PutUint32(buf[offLength:], uint32(d.length))
	binary.LittleEndian.PutUint32(buf[offMagic:], inodeMagic)

	return buf
}

// decodeInode deserializes a one-sector buffer.
// Returns [ErrCorrupt] on a magic mismatch.
func decodeInode(buf []byte) (diskInode, error) {
	var d diskInode

	if got := binary.LittleEndian.Uint32(buf[offMagic:]); got != inodeMagic {
		return d, fmt.Errorf("%w: inode magic %#x", ErrCorrupt, got)
	}

	for i := range d.direct {
		d.direct[i] = binary.LittleEndian.Uint32(buf[offDirect+4*i:])
	}

	d.indirect = binary.LittleEndian.Uint32(buf[offIndirect:])
	d.doubly = binary.LittleEndian.Uint32(buf[offDoubly:])
	d.isDir = buf[offIsDir] != 0
	d.length = int32(binary.LittleEndian.Uint32(buf[offLength:]))

	return d, nil
}

// encodePtrs serializes an indirect sector payload into buf.
func encodePtrs(p *ptrBlock, buf []byte) {
	for i, s := range p {
		binary.LittleEndian.PutUint32(buf[4*i:], s)
	}
}

// decodePtrs deserializes an indirect sector payload from buf.
func decodePtrs(buf []byte, p *ptrBlock) {
	for i := range p {
		p[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
}

// sectorsFor returns the number of data sectors backing length bytes.
func sectorsFor(length int64) uint32 {
	return uint32((length + device.SectorSize - 1) / device.SectorSize)
}
