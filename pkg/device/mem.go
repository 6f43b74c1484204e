package device

// MemDevice is an in-memory [Device].
//
// Used by tests and by scratch volumes in the shell. Not safe for
// concurrent use; callers serialize through the block cache.
type MemDevice struct {
	data    []byte
	sectors uint32
}

// NewMem returns a zero-filled in-memory device of the given sector count.
func NewMem(sectors uint32) *MemDevice {
	return &MemDevice{
		data:    make([]byte, int64(sectors)*SectorSize),
		sectors: sectors,
	}
}

func (d *MemDevice) SectorCount() uint32 {
	return d.sectors
}

func (d *MemDevice) ReadSector(sector uint32, dst []byte) error {
	if err := checkIO(sector, d.sectors, dst); err != nil {
		return err
	}

	copy(dst, d.data[int64(sector)*SectorSize:])

	return nil
}

func (d *MemDevice) WriteSector(sector uint32, src []byte) error {
	if err := checkIO(sector, d.sectors, src); err != nil {
		return err
	}

	copy(d.data[int64(sector)*SectorSize:], src)

	return nil
}

func (d *MemDevice) Close() error {
	return nil
}

// Compile-time interface check.
var _ Device = (*MemDevice)(nil)
