package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/sectorfs/internal/volume"
)

// shellCommands drive the prompt completer; the help output is shellHelp.
var shellCommands = []string{
	"create", "write", "read", "stat", "rm", "free", "flush", "info", "help", "exit", "quit",
}

const shellHelp = `  create [length]              Create an inode, print its sector
  write <sector> <off> <text>  Write literal text at a byte offset
  read <sector> [off] [len]    Read bytes (quoted output)
  stat <sector>                Show inode length and flags
  rm <sector>                  Remove an inode
  free                         Show free sector count
  flush                        Flush dirty cache slots to the device
  info                         Show volume summary
  help                         Show this help
  exit / quit / q              Exit`

// ShellCmd opens an interactive REPL on a volume.
func ShellCmd(cfg Config) *Command {
	flags := flag.NewFlagSet("shell", flag.ContinueOnError)
	memSectors := flags.Uint32("mem", 0, "Use a scratch in-memory volume of `sectors` instead of the image")

	return &Command{
		Flags: flags,
		Usage: "shell [flags]",
		Short: "Interactive REPL on a volume",
		Long: "Open the image (or a scratch in-memory volume with --mem) and accept\n" +
			"commands interactively. Type 'help' at the prompt for the command list.",
		Exec: func(ctx context.Context, o *IO, _ []string) error {
			var (
				v   *volume.Volume
				err error
			)

			if *memSectors > 0 {
				v, err = volume.OpenMem(*memSectors, cfg.CacheSlots)
			} else {
				v, err = volume.Open(cfg.Image, cfg.CacheSlots)
			}

			if err != nil {
				return err
			}
			defer func() { _ = v.Close() }()

			line := liner.NewLiner()
			defer func() { _ = line.Close() }()

			line.SetCtrlCAborts(true)
			line.SetCompleter(func(prefix string) []string {
				var out []string
				for _, c := range shellCommands {
					if strings.HasPrefix(c, prefix) {
						out = append(out, c)
					}
				}

				return out
			})

			for {
				if ctx.Err() != nil {
					return nil
				}

				input, err := line.Prompt("sectorfs> ")
				if err != nil {
					if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
						return nil
					}

					return err
				}

				input = strings.TrimSpace(input)
				if input == "" {
					continue
				}

				line.AppendHistory(input)

				if done := shellDispatch(o, v, input); done {
					return nil
				}
			}
		},
	}
}

// shellDispatch runs one REPL line. Returns true when the shell should exit.
func shellDispatch(o *IO, v *volume.Volume, input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	var err error

	switch cmd {
	case "exit", "quit", "q":
		return true
	case "help":
		o.Println(shellHelp)
	case "create":
		err = shellCreate(o, v, args)
	case "write":
		err = shellWrite(o, v, args)
	case "read":
		err = shellRead(o, v, args)
	case "stat":
		err = shellStat(o, v, args)
	case "rm":
		err = shellRm(o, v, args)
	case "free":
		o.Printf("%d free sectors\n", v.Map.Free())
	case "flush":
		if err = v.Cache.Flush(); err == nil {
			o.Println("flushed")
		}
	case "info":
		stats := v.Cache.Stats()
		o.Printf("%d sectors, %d free, cache %d slots (%d hits, %d misses, %d evictions)\n",
			v.Map.SectorCount(), v.Map.Free(), v.Cache.Capacity(),
			stats.Hits, stats.Misses, stats.Evictions)
	default:
		err = fmt.Errorf("unknown command %q (try 'help')", cmd)
	}

	if err != nil {
		o.ErrPrintln("error:", err)
	}

	return false
}

func shellCreate(o *IO, v *volume.Volume, args []string) error {
	var length int64

	if len(args) > 0 {
		n, err := parseOffset(args[0])
		if err != nil {
			return err
		}

		length = n
	}

	sector, err := v.Map.Allocate(1)
	if err != nil {
		return err
	}

	if err := v.Inodes.Create(sector, length, false); err != nil {
		v.Map.Release(sector, 1)

		return err
	}

	o.Printf("inode at sector %d\n", sector)

	return nil
}

func shellWrite(o *IO, v *volume.Volume, args []string) error {
	if len(args) < 3 {
		return errors.New("usage: write <sector> <offset> <text>")
	}

	sector, err := parseSector(args[0])
	if err != nil {
		return err
	}

	offset, err := parseOffset(args[1])
	if err != nil {
		return err
	}

	text := strings.Join(args[2:], " ")

	ino, err := v.Inodes.Open(sector)
	if err != nil {
		return err
	}
	defer func() { _ = ino.Close() }()

	n, err := ino.WriteAt([]byte(text), offset)
	if err != nil {
		return err
	}

	o.Printf("wrote %d bytes (length %d)\n", n, ino.Length())

	return nil
}

func shellRead(o *IO, v *volume.Volume, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: read <sector> [offset] [len]")
	}

	sector, err := parseSector(args[0])
	if err != nil {
		return err
	}

	var offset int64

	if len(args) > 1 {
		if offset, err = parseOffset(args[1]); err != nil {
			return err
		}
	}

	ino, err := v.Inodes.Open(sector)
	if err != nil {
		return err
	}
	defer func() { _ = ino.Close() }()

	want := ino.Length() - offset

	if len(args) > 2 {
		if want, err = parseOffset(args[2]); err != nil {
			return err
		}
	}

	if want <= 0 {
		o.Println(`""`)

		return nil
	}

	buf := make([]byte, want)

	n, err := ino.ReadAt(buf, offset)
	if err != nil {
		return err
	}

	o.Printf("%q\n", buf[:n])

	return nil
}

func shellStat(o *IO, v *volume.Volume, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: stat <sector>")
	}

	sector, err := parseSector(args[0])
	if err != nil {
		return err
	}

	ino, err := v.Inodes.Open(sector)
	if err != nil {
		return err
	}
	defer func() { _ = ino.Close() }()

	o.Printf("inode %d: length %d, dir %v\n", ino.Inumber(), ino.Length(), ino.IsDir())

	return nil
}

func shellRm(o *IO, v *volume.Volume, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: rm <sector>")
	}

	sector, err := parseSector(args[0])
	if err != nil {
		return err
	}

	ino, err := v.Inodes.Open(sector)
	if err != nil {
		return err
	}

	ino.Remove()

	if err := ino.Close(); err != nil {
		return err
	}

	o.Printf("removed inode %d (%d sectors free)\n", sector, v.Map.Free())

	return nil
}
