package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazz-dev/readycheck/internal/storage"
)

type mockStatusStore struct {
	checks  []storage.Check
	percent float64
	err     error
}

func (m *mockStatusStore) History(_ context.Context, limit, _ int) ([]storage.Check, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	if limit < len(m.checks) {
		return m.checks[:limit], len(m.checks), nil
	}
	return m.checks, len(m.checks), nil
}

func (m *mockStatusStore) ConnectedPercent(_ context.Context, _ int) (float64, error) {
	return m.percent, m.err
}

func TestExecuteStatus_EmptyDB(t *testing.T) {
	store := &mockStatusStore{checks: []storage.Check{}}
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	err := executeStatus(cmd, store, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "No check history") {
		t.Errorf("expected 'No check history' message, got:\n%s", output)
	}
}

func TestExecuteStatus_WithChecks(t *testing.T) {
	status := 503
	checks := []storage.Check{
		{ID: 2, BackendURL: "https://api.example.com", State: "failed", HTTPStatus: &status, Error: "db unavailable", ResponseMs: 8, CheckedAt: time.Now()},
		{ID: 1, BackendURL: "https://api.example.com", State: "connected", Service: "core-api", ResponseMs: 42, CheckedAt: time.Now()},
	}
	store := &mockStatusStore{checks: checks, percent: 50}

	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	err := executeStatus(cmd, store, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"CHECKED AT", "https://api.example.com", "failed", "503", "db unavailable", "connected", "core-api", "42ms"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
	if !strings.Contains(output, "Showing 2 of 2 checks. Connected 50.0% of the last 2.") {
		t.Errorf("expected summary line, got:\n%s", output)
	}
}

func TestExecuteStatus_Limit(t *testing.T) {
	checks := []storage.Check{
		{ID: 3, BackendURL: "a", State: "connected", CheckedAt: time.Now()},
		{ID: 2, BackendURL: "b", State: "connected", CheckedAt: time.Now()},
		{ID: 1, BackendURL: "c", State: "connected", CheckedAt: time.Now()},
	}
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := executeStatus(cmd, &mockStatusStore{checks: checks, percent: 100}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Showing 1 of 3 checks.") {
		t.Errorf("expected limited summary, got:\n%s", buf.String())
	}
}

func TestExecuteStatus_DBError(t *testing.T) {
	store := &mockStatusStore{err: errors.New("disk I/O error")}
	cmd := &cobra.Command{}
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	err := executeStatus(cmd, store, 20)
	if err == nil {
		t.Fatal("expected error from DB failure")
	}
	if !strings.Contains(err.Error(), "disk I/O error") {
		t.Errorf("expected wrapped DB error, got: %v", err)
	}
}
