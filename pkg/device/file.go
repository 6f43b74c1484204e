package device

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// FileDevice is a [Device] backed by a disk-image file.
//
// The image is locked with an exclusive advisory flock while open, so two
// processes cannot operate on the same image at once. Sector n lives at
// byte offset n*[SectorSize].
type FileDevice struct {
	file    *os.File
	sectors uint32
}

// OpenFile opens the disk image at path.
//
// The image size must be a non-zero multiple of [SectorSize]. Returns
// [ErrImageLocked] if another process holds the image.
func OpenFile(path string) (*FileDevice, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening image: %w", err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = file.Close()

		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrImageLocked
		}

		return nil, fmt.Errorf("locking image: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		_ = file.Close()

		return nil, fmt.Errorf("stat image: %w", err)
	}

	size := info.Size()
	if size == 0 || size%SectorSize != 0 {
		_ = file.Close()

		return nil, ErrBadImage
	}

	return &FileDevice{
		file:    file,
		sectors: uint32(size / SectorSize),
	}, nil
}

func (d *FileDevice) SectorCount() uint32 {
	return d.sectors
}

func (d *FileDevice) ReadSector(sector uint32, dst []byte) error {
	if err := checkIO(sector, d.sectors, dst); err != nil {
		return err
	}

	if _, err := d.file.ReadAt(dst, int64(sector)*SectorSize); err != nil {
		return fmt.Errorf("reading sector %d: %w", sector, err)
	}

	return nil
}

func (d *FileDevice) WriteSector(sector uint32, src []byte) error {
	if err := checkIO(sector, d.sectors, src); err != nil {
		return err
	}

	if _, err := d.file.WriteAt(src, int64(sector)*SectorSize); err != nil {
		return fmt.Errorf("writing sector %d: %w", sector, err)
	}

	return nil
}

// Close syncs the image, drops the lock, and closes the file.
func (d *FileDevice) Close() error {
	if d.file == nil {
		return nil
	}

	syncErr := d.file.Sync()

	_ = unix.Flock(int(d.file.Fd()), unix.LOCK_UN)

	closeErr := d.file.Close()
	d.file = nil

	if syncErr != nil {
		return fmt.Errorf("syncing image: %w", syncErr)
	}

	return closeErr
}

// Compile-time interface check.
var _ Device = (*FileDevice)(nil)
