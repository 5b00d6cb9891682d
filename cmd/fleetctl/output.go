package main

import (
	"io"
	"os"
)

// stdout is where subcommands write their results; a package-level var so
// tests can redirect it.
var stdout io.Writer = os.Stdout

func cmdOut() io.Writer { return stdout }
