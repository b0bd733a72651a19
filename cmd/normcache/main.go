// Package main is the entry point for the normcache CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/unkn0wn-root/normcache/cmd/normcache/commands"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := commands.New()
	cli.SetArgs(args)
	cli.SetInput(stdin)
	cli.SetOutput(stdout, stderr)

	if err := cli.Execute(ctx); err != nil {
		// zerr prints metadata with %+v
		_, _ = fmt.Fprintf(stderr, "Error: %+v\n", err)
		return 1
	}
	return 0
}
