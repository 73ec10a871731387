package main

import (
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/pivotal-cf/protogate/commands"
)

func main() {
	parser := flags.NewParser(&commands.Protogate, flags.HelpFlag|flags.PrintErrors)

	_, err := parser.Parse()
	if err != nil {
		os.Exit(1)
	}
}
