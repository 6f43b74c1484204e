package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/sectorfs/internal/volume"
)

// CatCmd reads a byte range of an inode to stdout.
func CatCmd(cfg Config) *Command {
	flags := flag.NewFlagSet("cat", flag.ContinueOnError)
	offset := flags.Int64P("offset", "o", 0, "Start `offset` in bytes")
	length := flags.Int64P("length", "l", -1, "Byte `count` (-1 reads to end of file)")

	return &Command{
		Flags: flags,
		Usage: "cat <sector> [flags]",
		Short: "Read inode bytes to stdout",
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
			defer func() { _ = ino.Close() }()

			want := *length
			if want < 0 {
				want = ino.Length() - *offset
			}

			if want <= 0 {
				return nil
			}

			buf := make([]byte, want)

			n, err := ino.ReadAt(buf, *offset)
			if err != nil {
				return err
			}

			o.Raw(buf[:n])

			return nil
		},
	}
}
