package version

import (
	"github.com/hashicorp-forge/sheetwatch/internal/cmd/base"
	"github.com/hashicorp-forge/sheetwatch/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the version of sheetwatch"
}

func (c *Command) Help() string {
	return "Usage: sheetwatch version"
}

func (c *Command) Run(args []string) int {
	c.UI.Output(version.String())
	return 0
}
