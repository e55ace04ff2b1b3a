// Command argos checks whether a username or email exists on a set of
// websites, using detection methods it learns per site from known real and
// fake identities.
//
// Usage:
//
//	argos learn -s instagram -t 'https://www.instagram.com/{user}/' -r alice,bob -f zz_nobody_91
//	argos check alice
//	argos methods list instagram
//	argos methods delete 3 4
//	argos serve
//	argos mcp
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "argos:", err)
		}
		os.Exit(1)
	}
}
