package main

import (
	"os"

	"github.com/hashicorp-forge/sheetwatch/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
