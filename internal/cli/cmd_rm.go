package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/sectorfs/internal/volume"
)

// RmCmd removes an inode and reclaims its sectors.
func RmCmd(cfg Config) *Command {
	flags := flag.NewFlagSet("rm", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "rm <sector>",
		Short: "Remove an inode and reclaim its sectors",
		Long: "Mark the inode at <sector> removed. Its data and indirection\n" +
			"sectors, and the inode sector itself, return to the free map when\n" +
			"the last opener closes - here, immediately.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 1 {
				return errSectorRequired
			}

			sector, err := parseSector(args[0])
			if err != nil {
				return err
			}

			v, err := volume.Open(cfg.Image, cfg.CacheSlots)
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			ino, err := v.Inodes.Open(sector)
			if err != nil {
				return err
			}

			ino.Remove()

			if err := ino.Close(); err != nil {
				return err
			}

			o.Printf("Removed inode %d (%d sectors free)\n", sector, v.Map.Free())

			return nil
		},
	}
}
