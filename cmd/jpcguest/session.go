package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/caffeineduck/jpcguest/hostsim"
	"github.com/caffeineduck/jpcguest/internal/transcript"
	"github.com/caffeineduck/jpcguest/runner"
	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

// invoker sends one request envelope to a guest.
type invoker interface {
	Invoke(ctx context.Context, request []byte) ([]byte, error)
}

// session is a compiled guest bound to a scripted host.
type session struct {
	runner    *runner.Runner
	host      *hostsim.Host
	body      *syncBuffer
	operation string
	runID     string
	store     *transcript.Store
}

// openSession compiles the module at path. A non-empty record path stores
// every host call in a transcript under a fresh run id.
func openSession(cmd *cobra.Command, path, record string) (*session, error) {
	s := &session{body: &syncBuffer{}, runID: newID()}
	s.operation, _ = cmd.Flags().GetString("operation")

	h, err := newHost(cmd, s.body)
	if err != nil {
		return nil, err
	}
	s.host = h
	host := runner.FromBridge(h.Bridge())

	if record != "" {
		store, err := transcript.Open(record)
		if err != nil {
			return nil, fmt.Errorf("open transcript: %w", err)
		}
		if err := store.Init(cmd.Context()); err != nil {
			store.Close()
			return nil, fmt.Errorf("init transcript: %w", err)
		}
		s.store = store
		host = store.Recorder(s.runID, host)
	}

	s.runner, err = openRunner(cmd.Context(), cmd, path, host)
	if err != nil {
		if s.store != nil {
			s.store.Close()
		}
		return nil, err
	}
	return s, nil
}

func (s *session) Invoke(ctx context.Context, request []byte) ([]byte, error) {
	out, err := s.runner.Invoke(ctx, s.operation, request)
	if err != nil {
		glog.Warningf("invoke %s: %v", s.operation, err)
	}
	return out, err
}

// Body returns what the guest wrote to the output stream since the last
// call.
func (s *session) Body() []byte {
	return s.body.Take()
}

func (s *session) Close() error {
	var errs []error
	if s.runner != nil {
		errs = append(errs, s.runner.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
