package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/selfheal/cmd/selfheal/commands"
	"git.home.luguber.info/inful/selfheal/internal/foundation/errors"
	"git.home.luguber.info/inful/selfheal/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{Stdout: os.Stdout}
	parser := kong.Must(cli,
		kong.Name("selfheal"),
		kong.Description("Repair a failing build with LLM-generated fixes and publish the result to a branch."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	if err := ctx.Run(global, cli); err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, global.Logger).HandleError(err)
	}
}
