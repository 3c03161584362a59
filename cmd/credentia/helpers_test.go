// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package main

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/credentia/credentia/internal/auth/memory"
	"github.com/credentia/credentia/internal/config"
)

const testDatabaseURL = "postgres://credentia@localhost/credentia_test"

// recordingSender keeps the last code mailed to each address.
type recordingSender struct {
	mu            sync.Mutex
	confirmations map[string]string
	recoveries    map[string]string
}

func newRecordingSender() *recordingSender {
	return &recordingSender{
		confirmations: make(map[string]string),
		recoveries:    make(map[string]string),
	}
}

func (s *recordingSender) SendConfirmationEmail(_ context.Context, address, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations[address] = code
	return nil
}

func (s *recordingSender) SendRecoveryEmail(_ context.Context, address, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recoveries[address] = code
	return nil
}

func (s *recordingSender) confirmation(address string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmations[address]
}

func (s *recordingSender) recovery(address string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recoveries[address]
}

type harness struct {
	db       *memory.DB
	sender   *recordingSender
	migrator *fakeMigrator
	deps     cliDeps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	h := &harness{
		db:       memory.NewDB(),
		sender:   newRecordingSender(),
		migrator: &fakeMigrator{},
	}
	h.deps = cliDeps{
		AppFactory: func(_ context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
			return newApp(cfg, logger, stores{
				users:    h.db.Users(),
				codes:    h.db.Codes(),
				sessions: h.db.Sessions(),
				tx:       h.db.Transactor(),
			}, h.sender)
		},
		MigratorFactory: func(url string) (schemaMigrator, error) {
			h.migrator.url = url
			return h.migrator, nil
		},
	}
	return h
}

// run executes the CLI with a database URL and returns stdout.
func (h *harness) run(args ...string) (string, error) {
	return h.runRaw(append([]string{"--database-url", testDatabaseURL}, args...)...)
}

func (h *harness) runRaw(args ...string) (string, error) {
	cmd := newRootCmd(h.deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(args...)
	require.NoError(t, err, "credentia %s", strings.Join(args, " "))
	return out
}

// issued parses the "key: value" lines printed for a new or rotated session.
func issued(t *testing.T, out string) map[string]string {
	t.Helper()
	fields := make(map[string]string)
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if ok {
			fields[key] = strings.TrimSpace(value)
		}
	}
	require.NotEmpty(t, fields["token"], "no token in output %q", out)
	return fields
}

type fakeMigrator struct {
	url        string
	version    uint
	dirty      bool
	upCalls    int
	downCalls  int
	forced     int
	err        error
	closed     bool
	lastSchema uint
}

func (m *fakeMigrator) Up() error {
	m.upCalls++
	if m.err != nil {
		return m.err
	}
	m.version = m.lastSchema
	return nil
}

func (m *fakeMigrator) Down() error {
	m.downCalls++
	if m.err != nil {
		return m.err
	}
	m.version = 0
	return nil
}

func (m *fakeMigrator) Version() (uint, bool, error) { return m.version, m.dirty, m.err }

func (m *fakeMigrator) Force(v int) error {
	m.forced = v
	return m.err
}

func (m *fakeMigrator) PendingMigrations() ([]uint, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []uint
	for v := m.version + 1; v <= m.lastSchema; v++ {
		out = append(out, v)
	}
	return out, nil
}

func (m *fakeMigrator) AppliedMigrations() ([]uint, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []uint
	for v := uint(1); v <= m.version; v++ {
		out = append(out, v)
	}
	return out, nil
}

func (m *fakeMigrator) Close() error {
	m.closed = true
	return nil
}
