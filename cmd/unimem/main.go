// Package main provides the unimem command line tool.
package main

import "github.com/GoSecreto/UniMem/cmd/unimem/commands"

// Version is set at build time.
var Version = "dev"

func main() {
	commands.Execute(Version)
}
