// Package operator holds one-off maintenance commands that act on a workbook
// directly instead of through the watch loop.
package operator

import (
	"fmt"

	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/sheetwatch/internal/cmd/base"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Run maintenance tasks against a workbook"
}

func (c *Command) Help() string {
	return `Usage: sheetwatch operator <subcommand> [options]

  Maintenance commands that read and write a workbook directly, without a
  remote store. Run "sheetwatch operator <subcommand> -h" for options.`
}

func (c *Command) Run(args []string) int {
	if len(args) > 0 && args[0] != "-h" && args[0] != "-help" {
		c.UI.Error(fmt.Sprintf("unknown operator subcommand %q", args[0]))
		return 1
	}
	return cli.RunResultHelp
}
