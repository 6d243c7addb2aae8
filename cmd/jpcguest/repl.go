package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/jpcguest/jpc"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

var replCmd = &cobra.Command{
	Use:   "repl <module.wasm>",
	Short: "Interactive loop sending requests to one module",
	Long: `Start an interactive loop against a guest module.

Each line is either a JSON envelope or a path followed by query
parameters:
  /content QUERY=cats API_KEY=k1

Features:
  - Command history (up/down arrows)
  - History search (Ctrl+R)

Type 'exit' or 'quit' to end the session, or press Ctrl+D.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepl,
}

func init() {
	replCmd.Flags().String("history", "", "History file path (default: ~/.jpcguest_history)")
	replCmd.Flags().String("record", "", "Record host calls to a sqlite transcript")
	rootCmd.AddCommand(replCmd)
}

// parseLine turns a repl line into a request envelope.
func parseLine(line string) ([]byte, error) {
	if strings.HasPrefix(line, "{") {
		return []byte(line), nil
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("empty request")
	}
	return buildRequest("", fields[0], fields[1:], jpc.QInfo{})
}

func runRepl(cmd *cobra.Command, args []string) error {
	historyFile, _ := cmd.Flags().GetString("history")
	record, _ := cmd.Flags().GetString("record")

	if historyFile == "" {
		home, _ := os.UserHomeDir()
		historyFile = filepath.Join(home, ".jpcguest_history")
	}

	s, err := openSession(cmd, args[0], record)
	if err != nil {
		return err
	}
	defer s.Close()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "jpc> ",
		HistoryFile:       historyFile,
		HistoryLimit:      1000,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("initialize readline: %w", err)
	}
	defer rl.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(cmd.ErrOrStderr(), "jpcguest %s (type 'exit' to quit, Ctrl+D to exit)\n", filepath.Base(args[0]))

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		request, err := parseLine(line)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			continue
		}
		resp, err := s.Invoke(cmd.Context(), request)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			continue
		}
		fmt.Fprintln(out, string(resp))
		if body := s.Body(); len(body) > 0 {
			fmt.Fprintf(out, "body: %s\n", body)
		}
	}
}
