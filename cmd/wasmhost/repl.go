package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl <file.wasm>",
	Short: "Interactive session over one instance",
	Long: `Instantiate the module and read commands line by line.

Commands:
  members                 list exported functions and globals
  get <global>            read a global
  set <global> <value>    write a global
  call <func> [args...]   call a function
  exit                    end the session (or Ctrl+D)

Features:
  - Command history (up/down arrows)
  - History search (Ctrl+R)`,
	Args: cobra.ExactArgs(1),
	RunE: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.wasmhost_history)")
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".wasmhost_history")
	}

	ctx := context.Background()
	s, err := openSession(ctx, cmd, args[0])
	if err != nil {
		return err
	}
	defer s.Close(ctx)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            s.inst.Name() + "> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		AutoComplete:      memberCompleter(s),
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(rl.Stderr(), "wasmhost %s (type 'exit' to quit, Ctrl+D to exit)\n", s.inst.Name())

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		if err := evalLine(ctx, rl.Stdout(), s, line); err != nil {
			if stderrors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(rl.Stderr(), "Error: %v\n", err)
		}
	}
}

var errQuit = stderrors.New("quit")

// evalLine runs one repl command against the session instance.
func evalLine(ctx context.Context, w io.Writer, s *session, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "exit", "quit":
		return errQuit
	case "members":
		for _, name := range s.inst.Dynamic().Members() {
			if f, ok := s.inst.Function(name); ok {
				fmt.Fprintf(w, "%s %s\n", name, f.Type())
			}
			if g, ok := s.inst.Global(name); ok {
				fmt.Fprintf(w, "%s %s\n", name, g.Type())
			}
		}
		return nil
	case "get":
		if len(args) != 1 {
			return fmt.Errorf("usage: get <global>")
		}
		v, err := s.inst.GetMember(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(w, formatValue(v.Any()))
		return nil
	case "set":
		if len(args) != 2 {
			return fmt.Errorf("usage: set <global> <value>")
		}
		return setGlobal(w, s, args[0], args[1])
	case "call":
		if len(args) < 1 {
			return fmt.Errorf("usage: call <func> [args...]")
		}
		return callFunction(ctx, w, s, args[0], args[1:])
	default:
		return fmt.Errorf("unknown command %q (members, get, set, call, exit)", cmd)
	}
}

func memberCompleter(s *session) readline.AutoCompleter {
	var functions, globals []readline.PrefixCompleterInterface
	for _, f := range s.inst.Functions() {
		functions = append(functions, readline.PcItem(f.Name()))
	}
	for _, g := range s.inst.Globals() {
		globals = append(globals, readline.PcItem(g.Name()))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("members"),
		readline.PcItem("get", globals...),
		readline.PcItem("set", globals...),
		readline.PcItem("call", functions...),
		readline.PcItem("exit"),
	)
}
