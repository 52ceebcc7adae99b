package cmd

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"

	"github.com/hashicorp-forge/sheetwatch/internal/version"
)

// defaultCommand runs when sheetwatch is started without a subcommand, which
// is how the container image invokes it.
const defaultCommand = "watch"

// Main runs the CLI with the given arguments and returns the exit code.
func Main(args []string) int {
	ui := &cli.BasicUi{
		Reader:      bufio.NewReader(os.Stdin),
		Writer:      os.Stdout,
		ErrorWriter: os.Stderr,
	}
	return run(args, ui, os.LookupEnv)
}

func run(args []string, ui cli.Ui, lookupEnv func(string) (string, bool)) int {
	cliName := filepath.Base(args[0])
	log := newLogger(cliName, lookupEnv)

	initCommands(log, ui)

	c := &cli.CLI{
		Name:     cliName,
		Args:     subcommandArgs(args[1:]),
		Version:  version.Version,
		Commands: Commands,
	}

	exitCode, err := c.Run()
	if err != nil {
		log.Error("error running command", "error", err)
		return 1
	}
	return exitCode
}

// subcommandArgs maps the bare invocation to the default command and the
// version flags to the version command.
func subcommandArgs(args []string) []string {
	if len(args) == 0 {
		return []string{defaultCommand}
	}
	if len(args) == 1 {
		switch args[0] {
		case "-v", "-version", "--version":
			return []string{"version"}
		}
	}
	return args
}

// newLogger builds the root logger. LOG_LEVEL sets the level used until the
// configuration is loaded, and SHEETWATCH_LOG_JSON switches to JSON lines for
// log collectors.
func newLogger(name string, lookupEnv func(string) (string, bool)) hclog.Logger {
	opts := &hclog.LoggerOptions{
		Name:  name,
		Level: hclog.Info,
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		if level := hclog.LevelFromString(v); level != hclog.NoLevel {
			opts.Level = level
		}
	}
	if v, ok := lookupEnv("SHEETWATCH_LOG_JSON"); ok {
		opts.JSONFormat, _ = strconv.ParseBool(v)
	}
	return hclog.New(opts)
}
