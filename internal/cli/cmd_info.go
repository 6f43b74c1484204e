package cli

import (
	"context"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/sectorfs/internal/volume"
)

// InfoCmd prints a volume summary.
func InfoCmd(cfg Config) *Command {
	flags := flag.NewFlagSet("info", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "info",
		Short: "Show volume and cache summary",
		Exec: func(_ context.Context, o *IO, _ []string) error {
			v, err := volume.Open(cfg.Image, cfg.CacheSlots)
			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			o.Printf("Image:        %s\n", cfg.Image)
			o.Printf("Sectors:      %d\n", v.Map.SectorCount())
			o.Printf("Reserved:     %d (free map)\n", v.Map.Reserved())
			o.Printf("Free:         %d\n", v.Map.Free())
			o.Printf("Cache slots:  %d\n", v.Cache.Capacity())

			stats := v.Cache.Stats()
			o.Printf("Cache stats:  %d hits, %d misses, %d evictions, %d write-backs\n",
				stats.Hits, stats.Misses, stats.Evictions, stats.WriteBacks)

			return nil
		},
	}
}
