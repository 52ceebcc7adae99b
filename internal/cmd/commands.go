package cmd

import (
	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/sheetwatch/internal/cmd/base"
	"github.com/hashicorp-forge/sheetwatch/internal/cmd/commands/operator"
	"github.com/hashicorp-forge/sheetwatch/internal/cmd/commands/version"
	"github.com/hashicorp-forge/sheetwatch/internal/cmd/commands/watch"
)

// Commands is the mapping of all available sheetwatch commands.
var Commands map[string]cli.CommandFactory

func initCommands(log hclog.Logger, ui cli.Ui) {
	b := base.NewCommand(log, ui)

	Commands = map[string]cli.CommandFactory{
		"watch": func() (cli.Command, error) {
			return &watch.Command{Command: b}, nil
		},
		"operator": func() (cli.Command, error) {
			return &operator.Command{Command: b}, nil
		},
		"operator assign-ids": func() (cli.Command, error) {
			return &operator.AssignIDsCommand{Command: b}, nil
		},
		"version": func() (cli.Command, error) {
			return &version.Command{Command: b}, nil
		},
	}
}
