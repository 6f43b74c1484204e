package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
)

// Run is the main entry point. Returns exit code.
// sigCh can be nil if signal handling is not needed (e.g., in tests).
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, sigCh <-chan os.Signal) int {
	// Create fresh global flags for this invocation
	globalFlags := flag.NewFlagSet("sectorfs", flag.ContinueOnError)
	globalFlags.SetInterspersed(false)
	globalFlags.Usage = func() {}
	globalFlags.SetOutput(&strings.Builder{})
	flagHelp := globalFlags.BoolP("help", "h", false, "Show help")
	flagConfig := globalFlags.StringP("config", "c", "", "Use specified config `file`")
	flagImage := globalFlags.StringP("image", "i", "", "Disk image `path`")
	flagCacheSlots := globalFlags.Int("cache-slots", 0, "Block cache capacity in `slots`")

	if err := globalFlags.Parse(args[1:]); err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	workDir, err := os.Getwd()
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	cfg, err := LoadConfig(workDir, *flagConfig)
	if err != nil {
		fprintln(errOut, "error:", err)
		printGlobalOptions(errOut)

		return 1
	}

	if globalFlags.Changed("image") {
		cfg.Image = *flagImage
	}

	if globalFlags.Changed("cache-slots") {
		cfg.CacheSlots = *flagCacheSlots
	}

	if err := validateConfig(cfg); err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	// Create all commands so that from now on, we can show
	// all of them inside error output/help.
	commands := allCommands(cfg, in)

	commandMap := make(map[string]*Command, len(commands))
	for _, cmd := range commands {
		commandMap[cmd.Name()] = cmd
	}

	commandAndArgs := globalFlags.Args()

	// Show help: explicit --help or bare `sectorfs` with no args
	if *flagHelp || (len(commandAndArgs) == 0 && globalFlags.NFlag() == 0) {
		printUsage(out, commands)

		return 0
	}

	// Flags provided but no command: `sectorfs --image disk.img`
	if len(commandAndArgs) == 0 {
		fprintln(errOut, "error: no command provided")
		printUsage(errOut, commands)

		return 1
	}

	// Dispatch to command
	cmdName := commandAndArgs[0]

	cmd, ok := commandMap[cmdName]
	if !ok {
		fprintln(errOut, "error: unknown command:", cmdName)
		printUsage(errOut, commands)

		return 1
	}

	cmdIO := NewIO(out, errOut)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Run command in goroutine so we can handle signals
	done := make(chan int, 1)

	go func() {
		done <- cmd.Run(ctx, cmdIO, commandAndArgs[1:])
	}()

	// Wait for completion or first signal (nil channel never fires)
	select {
	case exitCode := <-done:
		if exitCode != 0 {
			return exitCode
		}

		return cmdIO.Finish()
	case <-sigCh:
		fprintln(errOut, "shutting down with 5s timeout...")
		cancel()
	}

	// Wait for completion, timeout, or second signal
	select {
	case <-done:
		fprintln(errOut, "graceful shutdown ok (130)")

		return 130
	case <-time.After(5 * time.Second):
		fprintln(errOut, "graceful shutdown timed out, forced exit (130)")

		return 130
	case <-sigCh:
		fprintln(errOut, "graceful shutdown interrupted, forced exit (130)")

		return 130
	}
}

// allCommands returns all commands in display order.
// Dependencies are captured via closures in each command constructor.
func allCommands(cfg Config, in io.Reader) []*Command {
	return []*Command{
		FormatCmd(cfg),
		InfoCmd(cfg),
		CreateCmd(cfg),
		WriteCmd(cfg, in),
		CatCmd(cfg),
		RmCmd(cfg),
		ShellCmd(cfg),
	}
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

const globalOptionsHelp = `  -h, --help             Show help
  -c, --config <file>    Use specified config file
  -i, --image <path>     Disk image path
  --cache-slots <n>      Block cache capacity in slots`

func printGlobalOptions(w io.Writer) {
	fprintln(w, "Usage: sectorfs [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Global flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Run 'sectorfs --help' for a list of commands.")
}

func printUsage(w io.Writer, commands []*Command) {
	fprintln(w, "sectorfs - sector cache and inode layer over disk images")
	fprintln(w)
	fprintln(w, "Usage: sectorfs [flags] <command> [args]")
	fprintln(w)
	fprintln(w, "Flags:")
	fprintln(w, globalOptionsHelp)
	fprintln(w)
	fprintln(w, "Commands:")

	for _, cmd := range commands {
		fprintln(w, cmd.HelpLine())
	}
}
