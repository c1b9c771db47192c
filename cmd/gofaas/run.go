package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var errNoSource = errors.New("no handler source: pass a file, -c, or pipe code on stdin")

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Invoke a handler once",
	Long: `Load a handler and invoke it once with a JSON request.

The handler can be provided via:
  - File argument: gofaas run handler.js
  - Inline flag: gofaas run -c 'function handler(req) { return req }'
  - Stdin: cat handler.js | gofaas run

The response JSON is printed to stdout, console output to stderr.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("code", "c", "", "Handler code to execute")
	cmd.Flags().StringP("request", "r", "{}", "Request JSON, or @file to read it from a file")
	addExecutorFlags(cmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	code, _ := cmd.Flags().GetString("code")
	request, _ := cmd.Flags().GetString("request")

	var source string
	switch {
	case code != "":
		source = code
	case len(args) > 0:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		source = string(data)
	default:
		in := cmd.InOrStdin()
		// Check if stdin has data (not a terminal)
		if f, ok := in.(*os.File); ok {
			if stat, err := f.Stat(); err == nil && stat.Mode()&os.ModeCharDevice != 0 {
				return cmd.Help()
			}
		}
		data, err := io.ReadAll(in)
		if err != nil {
			return err
		}
		source = string(data)
	}
	if strings.TrimSpace(source) == "" {
		return errNoSource
	}

	reqJSON, err := readRequest(request)
	if err != nil {
		return err
	}

	exec, err := newExecutor(cmd)
	if err != nil {
		return err
	}
	defer exec.Close()

	result := exec.Run(context.Background(), source, reqJSON)
	fmt.Fprint(cmd.ErrOrStderr(), result.Output)

	if result.Error != nil {
		return result.Error
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(result.JSON))
	return nil
}

// readRequest returns the request JSON given on the command line. A
// leading @ names a file, "@-" reads stdin.
func readRequest(arg string) ([]byte, error) {
	name, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return []byte(arg), nil
	}
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	return data, nil
}
