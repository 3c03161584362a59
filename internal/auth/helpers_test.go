// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Credentia Contributors

package auth_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/credentia/credentia/internal/auth"
	"github.com/credentia/credentia/internal/auth/memory"
)

const (
	testConfirmationTTL = time.Hour
	testRecoveryTTL     = 30 * time.Minute
	testSessionTTL      = 30 * 24 * time.Hour
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendConfirmationEmail(ctx context.Context, address, code string) error {
	args := m.Called(ctx, address, code)
	return args.Error(0)
}

func (m *mockSender) SendRecoveryEmail(ctx context.Context, address, code string) error {
	args := m.Called(ctx, address, code)
	return args.Error(0)
}

// expectCode expects one email of the given method to address and returns a
// pointer that holds the mailed code once it is sent.
func (m *mockSender) expectCode(method, address string) *string {
	code := new(string)
	m.On(method, mock.Anything, address, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { *code = args.String(2) }).
		Return(nil).
		Once()
	return code
}

// lockedBuffer lets the JSON handler and the test read logs from different goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}

type testEnv struct {
	db       *memory.DB
	users    *memory.UserDirectory
	clock    *fakeClock
	sender   *mockSender
	hasher   *auth.Argon2idHasher
	logs     *lockedBuffer
	logger   *slog.Logger
	codes    *auth.CredentialCodeManager
	sessions *auth.DeviceSessionManager
	accounts *auth.AccountService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		db:     memory.NewDB(),
		clock:  newFakeClock(),
		sender: &mockSender{},
		hasher: auth.NewArgon2idHasher(),
		logs:   &lockedBuffer{},
	}
	env.users = env.db.Users()
	env.logger = slog.New(slog.NewJSONHandler(env.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	var err error
	env.codes, err = auth.NewCredentialCodeManager(
		env.users, env.db.Codes(), env.db.Transactor(), env.sender, env.hasher,
		auth.CodeTTLs{EmailConfirmation: testConfirmationTTL, PasswordRecovery: testRecoveryTTL},
		env.options()...,
	)
	require.NoError(t, err)

	env.sessions, err = auth.NewDeviceSessionManager(
		env.users, env.db.Sessions(), env.db.Transactor(), env.hasher, testSessionTTL,
		env.options()...,
	)
	require.NoError(t, err)

	env.accounts, err = auth.NewAccountService(env.users, env.hasher, env.options()...)
	require.NoError(t, err)

	t.Cleanup(func() { env.sender.AssertExpectations(t) })
	return env
}

func (e *testEnv) options() []auth.Option {
	return []auth.Option{auth.WithClock(e.clock.Now), auth.WithLogger(e.logger)}
}

// createUser adds a confirmed user through the account service.
func (e *testEnv) createUser(t *testing.T, login, email, password string) *auth.User {
	t.Helper()
	user, err := e.accounts.CreateUser(context.Background(), login, email, password)
	require.NoError(t, err)
	return user
}

// register runs the registration flow and returns the user and mailed code.
func (e *testEnv) register(t *testing.T, login, email, password string) (*auth.User, string) {
	t.Helper()
	code := e.sender.expectCode("SendConfirmationEmail", email)
	user, err := e.codes.Register(context.Background(), login, email, password)
	require.NoError(t, err)
	require.NotEmpty(t, *code)
	return user, *code
}

func (e *testEnv) findUser(t *testing.T, id ulid.ULID) *auth.User {
	t.Helper()
	user, err := e.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

func (e *testEnv) logEntries(t *testing.T) []map[string]any {
	t.Helper()
	var entries []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(e.logs.Bytes()))
	for scanner.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.NoError(t, scanner.Err())
	return entries
}

// findLog returns the first entry with msg, or nil.
func (e *testEnv) findLog(t *testing.T, msg string) map[string]any {
	t.Helper()
	for _, entry := range e.logEntries(t) {
		if entry["msg"] == msg {
			return entry
		}
	}
	return nil
}
