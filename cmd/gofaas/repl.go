package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/gofaas/executor"
	"github.com/caffeineduck/gofaas/language/javascript"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl <handler-file>",
	Short: "Interactively invoke a handler",
	Long: `Load a handler file and invoke it once per request typed at the prompt.

Each input is a request JSON document; the response is printed as JSON.

Features:
  - Command history (up/down arrows)
  - Line editing (left/right, backspace, delete)
  - History search (Ctrl+R)
  - Multi-line input (end line with \)
  - :reload re-reads the handler file

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.gofaas_history)")
	addExecutorFlags(replCmd)
	rootCmd.AddCommand(replCmd)
}

// replSession keeps one handler deployed and feeds it requests.
type replSession struct {
	exec *executor.Executor
	path string
	name string
	out  io.Writer
	errw io.Writer
}

func (s *replSession) reload() error {
	src, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	return s.exec.Deploy(s.name, string(src))
}

// eval handles one complete input. It reports whether the session should
// end.
func (s *replSession) eval(ctx context.Context, line string) (quit bool) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "exit", "quit":
		return true
	case ":reload":
		if err := s.reload(); err != nil {
			fmt.Fprintf(s.errw, "Error: %v\n", err)
		} else {
			fmt.Fprintf(s.errw, "reloaded %s\n", s.path)
		}
		return false
	}

	result := s.exec.Invoke(ctx, s.name, []byte(line))
	if result.Output != "" {
		fmt.Fprint(s.errw, result.Output)
	}
	if result.Error != nil {
		fmt.Fprintf(s.errw, "Error: %v\n", result.Error)
		return false
	}
	fmt.Fprintln(s.out, string(result.JSON))
	return false
}

func runRepl(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".gofaas_history")
	}

	exec, err := newExecutor(cmd)
	if err != nil {
		return err
	}
	defer exec.Close()

	session := &replSession{
		exec: exec,
		path: args[0],
		name: javascript.New().FunctionName(args[0]),
		out:  cmd.OutOrStdout(),
		errw: cmd.ErrOrStderr(),
	}
	if err := session.reload(); err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            ">>> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initializing readline: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(session.errw, "gofaas REPL for %s (type 'exit' to quit, Ctrl+D to exit)\n", session.name)

	var multiLine strings.Builder
	inMultiLine := false

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if inMultiLine {
					multiLine.Reset()
					inMultiLine = false
					rl.SetPrompt(">>> ")
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(session.out)
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		// Handle multi-line input
		if strings.HasSuffix(line, "\\") {
			multiLine.WriteString(strings.TrimSuffix(line, "\\"))
			multiLine.WriteString("\n")
			inMultiLine = true
			rl.SetPrompt("... ")
			continue
		}

		if inMultiLine {
			multiLine.WriteString(line)
			line = multiLine.String()
			multiLine.Reset()
			inMultiLine = false
			rl.SetPrompt(">>> ")
		}

		if session.eval(context.Background(), line) {
			return nil
		}
	}
}
