// Package main provides sectorfs, an operator tool for disk images built
// on the block cache and inode layer.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/calvinalkan/sectorfs/internal/cli"
)

func main() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	exitCode := cli.Run(os.Stdin, os.Stdout, os.Stderr, os.Args, sigCh)

	os.Exit(exitCode)
}
