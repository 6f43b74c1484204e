package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/sectorfs/internal/volume"
	"github.com/calvinalkan/sectorfs/pkg/freemap"
)

// defaultFormatSectors is a 2 MiB image.
const defaultFormatSectors = 4096

// FormatCmd creates and formats a disk image.
func FormatCmd(cfg Config) *Command {
	flags := flag.NewFlagSet("format", flag.ContinueOnError)
	sectors := flags.Uint32P("sectors", "n", defaultFormatSectors, "Image size in `sectors` of 512 bytes")
	force := flags.BoolP("force", "f", false, "Replace an existing image")

	return &Command{
		Flags: flags,
		Usage: "format [flags]",
		Short: "Create and format a disk image",
		Long: "Create a disk image and write a fresh free-sector map into it.\n" +
			"The image appears atomically; an existing image is only replaced\n" +
			"with --force.",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			if err := volume.Format(cfg.Image, *sectors, *force); err != nil {
				return err
			}

			o.Printf("Formatted %s: %d sectors (%d reserved for free map)\n",
				cfg.Image, *sectors, freemap.SectorsFor(*sectors))

			return nil
		},
	}
}
