package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/sectorfs/internal/volume"
)

// Argument errors shared by the data commands.
var (
	errSectorRequired = errors.New("inode sector required")
	errOffsetRequired = errors.New("byte offset required")
)

// parseSector parses a decimal sector number argument.
func parseSector(arg string) (uint32, error) {
	n, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid sector %q: %w", arg, err)
	}

	return uint32(n), nil
}

// parseOffset parses a decimal byte offset argument.
func parseOffset(arg string) (int64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid offset %q", arg)
	}

	return n, nil
}

// WriteCmd writes bytes into an inode at an offset.
func WriteCmd(cfg Config, in io.Reader) *Command {
	flags := flag.NewFlagSet("write", flag.ContinueOnError)
	inPath := flags.String("in", "-", "Input `file` ('-' for stdin)")

	return &Command{
		Flags: flags,
		Usage: "write <sector> <offset> [flags]",
		Short: "Write bytes into an inode",
		Long: "Write the input bytes into the inode at <sector>, starting at byte\n" +
			"<offset>. A write past end-of-file grows the file; skipped regions\n" +
			"read back as zeros.",
		Exec: func(_ context.Context, o *IO, args []string) error {
			if len(args) < 1 {
				return errSectorRequired
			}

			if len(args) < 2 {
				return errOffsetRequired
			}

			sector, err := parseSector(args[0])
			if err != nil {
				return err
			}

			offset, err := parseOffset(args[1])
			if err != nil {
				return err
			}

			src := in
			if *inPath != "-" {
				f, err := os.Open(*inPath) //nolint:gosec // path comes from the operator
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()

				src = f
			}

			data, err := io.ReadAll(src)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
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

			n, err := ino.WriteAt(data, offset)
			if err != nil {
				return err
			}

			o.Printf("Wrote %d bytes at offset %d (length now %d)\n", n, offset, ino.Length())

			return nil
		},
	}
}
