package dump

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neri/wami/load"
	"github.com/neri/wami/wasm"
)

// names resolves function indices to human-readable names using the name
// custom section, falling back to export names and synthetic names.
type names struct {
	byIndex map[uint32]string
}

func newNames(m *wasm.Module) *names {
	n := names{byIndex: map[uint32]string{}}

	if m.Export != nil {
		for _, e := range m.Export.Entries {
			if e.Kind == wasm.ExternalFunction {
				n.byIndex[e.Index] = e.FieldStr
			}
		}
	}

	if section, err := m.Names(); err == nil {
		for _, sub := range section.Entries {
			funcs, ok := sub.(*wasm.FunctionNamesSubsection)
			if !ok {
				continue
			}
			for _, naming := range funcs.Names {
				n.byIndex[naming.Index] = naming.Name
			}
		}
	}

	return &n
}

func (n *names) FunctionName(funcidx uint32) string {
	if name, ok := n.byIndex[funcidx]; ok {
		return name
	}
	return fmt.Sprintf("func[%d]", funcidx)
}

func Command() *cobra.Command {
	var stats bool

	command := &cobra.Command{
		Use:   "dump [path to module]",
		Short: "Dump information about a WebAssembly module",
		Long:  "Dump per-function statistics for a WebAssembly module as CSV.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("expected exactly one argument")
			}

			mod, err := load.LoadFile(args[0])
			if err != nil {
				return err
			}

			if !stats {
				return errors.New("nothing to dump; did you mean --stats?")
			}

			return dumpStats(os.Stdout, mod, newNames(mod))
		},
	}

	command.PersistentFlags().BoolVar(&stats, "stats", false, "dump per-function statistics as CSV")

	return command
}
