package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var exportsCmd = &cobra.Command{
	Use:   "exports <file.wasm>",
	Short: "List the exports of a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := loadModule(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, exp := range s.mod.Exports() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", exp.Kind(), exp.Name, exp.Type)
		}
		return w.Flush()
	},
}

var importsCmd = &cobra.Command{
	Use:   "imports <file.wasm>",
	Short: "List the imports of a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := loadModule(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, imp := range s.mod.Imports() {
			fmt.Fprintf(w, "%s\t%s::%s\t%s\n", imp.Kind(), imp.Module, imp.Name, imp.Type)
		}
		return w.Flush()
	},
}

var invokeCmd = &cobra.Command{
	Use:   "invoke <file.wasm> <function> [args...]",
	Short: "Call an exported function",
	Long: `Instantiate the module and call one exported function.

Arguments are parsed according to the parameter types of the function.
Integers accept decimal, 0x hex and the unsigned range of their width.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openSession(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		return callFunction(ctx, cmd.OutOrStdout(), s, args[1], args[2:])
	},
}

var getCmd = &cobra.Command{
	Use:   "get <file.wasm> <global>",
	Short: "Read an exported global",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openSession(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		v, err := s.inst.GetMember(args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatValue(v.Any()))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <file.wasm> <global> <value>",
	Short: "Write an exported global and print the value read back",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openSession(ctx, cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close(ctx)

		return setGlobal(cmd.OutOrStdout(), s, args[1], args[2])
	},
}

// callFunction parses raw for the parameters of the function name, calls
// it and prints the results.
func callFunction(ctx context.Context, w io.Writer, s *session, name string, raw []string) error {
	f, ok := s.inst.Function(name)
	if !ok {
		_, err := s.inst.InvokeMember(ctx, name)
		return err
	}
	args, err := parseArgs(f.Type(), raw)
	if err != nil {
		return err
	}
	res, err := f.Call(ctx, args...)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, formatResult(res))
	return nil
}

// setGlobal parses raw for the type of the global name, writes it and
// prints the value read back.
func setGlobal(w io.Writer, s *session, name, raw string) error {
	g, ok := s.inst.Global(name)
	if !ok {
		_, err := s.inst.GetMember(name)
		return err
	}
	v, err := parseValue(g.Kind(), raw)
	if err != nil {
		return err
	}
	if err := g.Set(v); err != nil {
		return err
	}
	got, err := g.Get()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, formatValue(got.Any()))
	return nil
}

func init() {
	// values such as -7 follow the positional arguments and are not flags
	invokeCmd.Flags().SetInterspersed(false)
	setCmd.Flags().SetInterspersed(false)

	rootCmd.AddCommand(exportsCmd, importsCmd, invokeCmd, getCmd, setCmd)
}
