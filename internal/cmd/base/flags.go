package base

import (
	"bytes"
	"flag"
	"fmt"
	"strings"
)

// FlagSet wraps a standard FlagSet so commands can render their flags in
// Help().
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet wraps f.
func NewFlagSet(f *flag.FlagSet) *FlagSet {
	return &FlagSet{FlagSet: f}
}

// Help renders the flags for a command's help text.
func (f *FlagSet) Help() string {
	var out bytes.Buffer

	first := true
	f.VisitAll(func(fl *flag.Flag) {
		if first {
			out.WriteString("\n\nOptions:\n")
			first = false
		}

		fmt.Fprintf(&out, "\n  -%s", fl.Name)
		if name, _ := flag.UnquoteUsage(fl); name != "" {
			fmt.Fprintf(&out, "=<%s>", name)
		}
		if fl.DefValue != "" && fl.DefValue != "false" {
			fmt.Fprintf(&out, "  (default: %s)", fl.DefValue)
		}
		_, usage := flag.UnquoteUsage(fl)
		for _, line := range strings.Split(usage, "\n") {
			fmt.Fprintf(&out, "\n      %s", line)
		}
		out.WriteString("\n")
	})

	return strings.TrimRight(out.String(), "\n")
}
