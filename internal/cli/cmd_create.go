package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/sectorfs/internal/volume"
)

// CreateCmd allocates an inode sector and creates an inode there.
func CreateCmd(cfg Config) *Command {
	flags := flag.NewFlagSet("create", flag.ContinueOnError)
	length := flags.Int64P("length", "l", 0, "Initial file length in `bytes`")
	isDir := flags.BoolP("dir", "d", false, "Mark the inode as a directory")

	return &Command{
		Flags: flags,
		Usage: "create [flags]",
		Short: "Create an inode and print its sector",
		Long: "Allocate a sector from the free map, create an inode of the given\n" +
			"length there, and print the sector number. Data sectors backing the\n" +
			"initial length are allocated and zero-filled.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			v, err := volume.Open(cfg.Image, cfg.CacheSlots)
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			sector, err := v.Map.Allocate(1)
			if err != nil {
				return err
			}

			if err := v.Inodes.Create(sector, *length, *isDir); err != nil {
				v.Map.Release(sector, 1)

				return err
			}

			o.Printf("Created inode at sector %d (length %d)\n", sector, *length)

			return nil
		},
	}
}
