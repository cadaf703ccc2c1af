package run

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/neri/wami/exec"
	"github.com/neri/wami/load"
	"github.com/neri/wami/wasm"
)

func parseArgs(sig wasm.FunctionSig, args []string) ([]interface{}, error) {
	if len(args) != len(sig.ParamTypes) {
		return nil, fmt.Errorf("expected %d arguments; got %d", len(sig.ParamTypes), len(args))
	}

	values := make([]interface{}, len(args))
	for i, arg := range args {
		switch sig.ParamTypes[i] {
		case wasm.ValueTypeI32:
			v, err := strconv.ParseInt(arg, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			values[i] = int32(v)
		case wasm.ValueTypeI64:
			v, err := strconv.ParseInt(arg, 0, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			values[i] = v
		case wasm.ValueTypeF32:
			v, err := strconv.ParseFloat(arg, 32)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			values[i] = float32(v)
		case wasm.ValueTypeF64:
			v, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return nil, fmt.Errorf("argument %d: %w", i, err)
			}
			values[i] = v
		default:
			return nil, fmt.Errorf("argument %d: unsupported parameter type", i)
		}
	}
	return values, nil
}

func Command() *cobra.Command {
	var invoke string
	var debug bool
	var maxDepth uint

	command := &cobra.Command{
		Use:   "run [path to module] [arguments]",
		Short: "Run a WebAssembly module",
		Long:  "Run an exported function of a WebAssembly module. Imports are resolved against .wasm files in the module's directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return errors.New("expected at least one argument")
			}

			wasm.SetDebugMode(debug)

			mod, err := load.LoadFile(args[0])
			if err != nil {
				return err
			}

			def, err := load.Interpret(mod)
			if err != nil {
				return err
			}

			dir := filepath.Dir(args[0])
			store := exec.NewStore(load.NewDirResolver(dir))

			ext := filepath.Ext(args[0])
			name := filepath.Base(args[0][: len(args[0])-len(ext)])

			instance, err := store.InstantiateModuleDefinition(name, def)
			if err != nil {
				return err
			}

			function, err := instance.GetFunction(invoke)
			if err != nil {
				return err
			}

			values, err := parseArgs(function.GetSignature(), args[1:])
			if err != nil {
				return err
			}

			thread := exec.NewThread(maxDepth)

			results, err := func() (results []interface{}, err error) {
				defer func() {
					if x := recover(); x != nil {
						if trap, ok := x.(exec.Trap); ok {
							err = trap
							return
						}
						if hostErr, ok := x.(*exec.HostError); ok {
							err = hostErr
							return
						}
						panic(x)
					}
				}()
				return function.Call(&thread, values...), nil
			}()
			if err != nil {
				return fmt.Errorf("trap: %w", err)
			}

			for _, result := range results {
				switch v := result.(type) {
				case float32:
					fmt.Printf("%v (%#08x)\n", v, math.Float32bits(v))
				case float64:
					fmt.Printf("%v (%#016x)\n", v, math.Float64bits(v))
				default:
					fmt.Printf("%v\n", v)
				}
			}
			return nil
		},
	}

	command.PersistentFlags().StringVarP(&invoke, "invoke", "i", "_start", "name of the exported function to invoke")
	command.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable decoder trace logging")
	command.PersistentFlags().UintVar(&maxDepth, "max-depth", 0, "maximum call stack depth (0 = unlimited)")

	return command
}
