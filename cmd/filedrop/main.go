// Command filedrop drops files into a catalog and lists, downloads, or
// removes them later.
//
// Usage:
//
//	filedrop [global options] <command> [arguments]
//
// The catalog is either the local slot (mode: local) or the catalog
// service (mode: remote), chosen from configuration at startup.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	app := newApp()
	app.ExitErrHandler = exitErrHandler
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

// exitErrHandler prints the error and exits with the code carried by cli.Exit.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
