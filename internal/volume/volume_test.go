package volume_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/sectorfs/internal/volume"
	"github.com/calvinalkan/sectorfs/pkg/device"
	"github.com/calvinalkan/sectorfs/pkg/freemap"
)

func imagePath(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "disk.img")
}

func Test_Format_Creates_Image_Of_Requested_Size(t *testing.T) {
	t.Parallel()

	path := imagePath(t)

	if err := volume.Format(path, 256, false); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	if got := info.Size(); got != 256*device.SectorSize {
		t.Fatalf("image size = %d, want %d", got, 256*device.SectorSize)
	}
}

func Test_Format_Refuses_Existing_Image_Without_Force(t *testing.T) {
	t.Parallel()

	path := imagePath(t)

	if err := volume.Format(path, 256, false); err != nil {
		t.Fatal(err)
	}

	if err := volume.Format(path, 256, false); !errors.Is(err, volume.ErrExists) {
		t.Fatalf("error = %v, want ErrExists", err)
	}

	if err := volume.Format(path, 128, true); err != nil {
		t.Fatalf("format --force: %v", err)
	}
}

func Test_Format_Rejects_Tiny_Volumes(t *testing.T) {
	t.Parallel()

	if err := volume.Format(imagePath(t), 2, false); !errors.Is(err, volume.ErrTooSmall) {
		t.Fatalf("error = %v, want ErrTooSmall", err)
	}
}

func Test_Open_Rejects_Unformatted_Image(t *testing.T) {
	t.Parallel()

	path := imagePath(t)

	if err := os.WriteFile(path, make([]byte, 256*device.SectorSize), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := volume.Open(path, 0); !errors.Is(err, freemap.ErrNotFormatted) {
		t.Fatalf("error = %v, want ErrNotFormatted", err)
	}
}

func Test_Data_And_Free_Map_Persist_Across_Mounts(t *testing.T) {
	t.Parallel()

	path := imagePath(t)

	if err := volume.Format(path, 512, false); err != nil {
		t.Fatal(err)
	}

	v, err := volume.Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}

	sector, err := v.Map.Allocate(1)
	if err != nil {
		t.Fatal(err)
	}

	if err := v.Inodes.Create(sector, 0, false); err != nil {
		t.Fatal(err)
	}

	ino, err := v.Inodes.Open(sector)
	if err != nil {
		t.Fatal(err)
	}

	payload := bytes.Repeat([]byte("sector"), 1000)
	if _, err := ino.WriteAt(payload, 0); err != nil {
		t.Fatal(err)
	}

	freeBefore := v.Map.Free()

	if err := ino.Close(); err != nil {
		t.Fatal(err)
	}

	if err := v.Close(); err != nil {
		t.Fatal(err)
	}

	// Remount: content and allocation state must have survived.
	v, err = volume.Open(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = v.Close() }()

	if got := v.Map.Free(); got != freeBefore {
		t.Fatalf("Free after remount = %d, want %d", got, freeBefore)
	}

	ino, err = v.Inodes.Open(sector)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = ino.Close() }()

	got := make([]byte, len(payload))
	if _, err := ino.ReadAt(got, 0); err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(got, payload) {
		t.Fatal("payload lost across remount")
	}
}

func Test_OpenMem_Gives_A_Formatted_Scratch_Volume(t *testing.T) {
	t.Parallel()

	v, err := volume.OpenMem(128, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = v.Close() }()

	sector, err := v.Map.Allocate(1)
	if err != nil {
		t.Fatal(err)
	}

	if err := v.Inodes.Create(sector, 100, false); err != nil {
		t.Fatal(err)
	}
}

func Test_Close_Twice_Returns_ErrNotMounted(t *testing.T) {
	t.Parallel()

	v, err := volume.OpenMem(128, 8)
	if err != nil {
		t.Fatal(err)
	}

	if err := v.Close(); err != nil {
		t.Fatal(err)
	}

	if err := v.Close(); !errors.Is(err, volume.ErrNotMounted) {
		t.Fatalf("error = %v, want ErrNotMounted", err)
	}
}
