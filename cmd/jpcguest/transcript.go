package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/caffeineduck/jpcguest/internal/transcript"
	"github.com/spf13/cobra"
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Inspect recorded host call transcripts",
}

var transcriptListCmd = &cobra.Command{
	Use:   "list <transcript.db>",
	Short: "List recorded host calls",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranscriptList,
}

func init() {
	transcriptListCmd.Flags().String("run", "", "Only list calls of this run id")
	transcriptListCmd.Flags().Bool("payload", false, "Include payloads and responses")
	transcriptCmd.AddCommand(transcriptListCmd)
	rootCmd.AddCommand(transcriptCmd)
}

func runTranscriptList(cmd *cobra.Command, args []string) error {
	runID, _ := cmd.Flags().GetString("run")
	withPayload, _ := cmd.Flags().GetBool("payload")

	store, err := transcript.Open(args[0])
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Init(cmd.Context()); err != nil {
		return err
	}

	entries, err := store.List(cmd.Context(), runID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tRUN\tREQUEST\tCALL\tERROR")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s.%s\t%s\n", e.Seq, e.RunID, e.RequestID, e.Binding, e.Method, e.Err)
		if withPayload {
			fmt.Fprintf(tw, "\t\t\t> %s\t\n", e.Payload)
			fmt.Fprintf(tw, "\t\t\t< %s\t\n", e.Response)
		}
	}
	return tw.Flush()
}
