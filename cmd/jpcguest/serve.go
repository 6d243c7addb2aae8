package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve <module.wasm>",
	Short: "Start an HTTP server forwarding requests to a module",
	Long: `Start an HTTP server that forwards JPC envelopes to a guest module.

Endpoints:
  POST   /jpc      Send the request body to the module, reply with its response
  GET    /health   Health check`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().Int64("max-body", 1024*1024, "Max request body size")
	serveCmd.Flags().String("record", "", "Record host calls to a sqlite transcript")
	rootCmd.AddCommand(serveCmd)
}

func newServeMux(inv invoker, maxBody int64) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/jpc", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		if len(body) == 0 {
			http.Error(w, "request body required", http.StatusBadRequest)
			return
		}

		out, err := inv.Invoke(r.Context(), body)
		if err != nil {
			http.Error(w, fmt.Sprintf("guest failed: %v", err), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(out)
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

func runServe(cmd *cobra.Command, args []string) error {
	port, _ := cmd.Flags().GetInt("port")
	maxBody, _ := cmd.Flags().GetInt64("max-body")
	record, _ := cmd.Flags().GetString("record")

	s, err := openSession(cmd, args[0], record)
	if err != nil {
		return err
	}
	defer s.Close()

	addr := fmt.Sprintf(":%d", port)
	glog.Infof("jpcguest server listening on %s", addr)
	return http.ListenAndServe(addr, newServeMux(s, maxBody))
}
