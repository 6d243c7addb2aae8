package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/caffeineduck/jpcguest/jpc"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <module.wasm>",
	Short: "Run one request through a guest module",
	Long: `Run a single JPC request through a guest module and print the response.

The request is read from a file or built from flags:
  - Envelope file: jpcguest run proxy.wasm --request req.json
  - Stdin: cat req.json | jpcguest run proxy.wasm --request -
  - Path and query: jpcguest run proxy.wasm --path /content -q QUERY=cats

Host calls are answered by the script given with --script. Anything the
guest writes to the output stream is written to --body.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("request", "", "Request envelope file ('-' for stdin)")
	runCmd.Flags().String("path", "", "Request path, e.g. /content")
	runCmd.Flags().StringArrayP("query", "q", nil, "Query parameter key=value (repeatable)")
	runCmd.Flags().String("id", "", "Request id (default: a new ULID)")
	runCmd.Flags().String("hash", "", "Content hash placed in qinfo")
	runCmd.Flags().String("write-token", "", "Write token placed in qinfo")
	runCmd.Flags().String("qlib-id", "", "Library id placed in qinfo")
	runCmd.Flags().String("record", "", "Record host calls to a sqlite transcript")
	runCmd.Flags().String("body", "", "Write the output stream to file ('-' for stdout)")
	rootCmd.AddCommand(runCmd)
}

func readRequest(cmd *cobra.Command) ([]byte, error) {
	requestFile, _ := cmd.Flags().GetString("request")
	path, _ := cmd.Flags().GetString("path")

	switch {
	case requestFile == "-":
		return io.ReadAll(cmd.InOrStdin())
	case requestFile != "":
		return os.ReadFile(requestFile)
	case path != "":
		query, _ := cmd.Flags().GetStringArray("query")
		id, _ := cmd.Flags().GetString("id")
		var qinfo jpc.QInfo
		qinfo.Hash, _ = cmd.Flags().GetString("hash")
		qinfo.WriteToken, _ = cmd.Flags().GetString("write-token")
		qinfo.QLibID, _ = cmd.Flags().GetString("qlib-id")
		return buildRequest(id, path, query, qinfo)
	}
	return nil, errors.New("either --request or --path is required")
}

func runRun(cmd *cobra.Command, args []string) error {
	record, _ := cmd.Flags().GetString("record")
	bodyPath, _ := cmd.Flags().GetString("body")

	request, err := readRequest(cmd)
	if err != nil {
		return err
	}

	s, err := openSession(cmd, args[0], record)
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := s.Invoke(cmd.Context(), request)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if body := s.Body(); len(body) > 0 && bodyPath != "" {
		if bodyPath == "-" {
			cmd.OutOrStdout().Write(body)
		} else if err := os.WriteFile(bodyPath, body, 0o644); err != nil {
			return err
		}
	}
	if record != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "recorded run %s to %s\n", s.runID, record)
	}
	return nil
}
