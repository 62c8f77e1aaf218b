package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Store honoring TTLs against an adjustable clock.
type memStore struct {
	mu      sync.Mutex
	now     time.Time
	entries map[string]memEntry
	setErr  error
}

type memEntry struct {
	value     string
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{now: time.Now(), entries: make(map[string]memEntry)}
}

func (s *memStore) advance(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = s.now.Add(d)
}

func (s *memStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.entries[key] = memEntry{value: value, expiresAt: s.now.Add(ttl)}
	return nil
}

func (s *memStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || !entry.expiresAt.After(s.now) {
		delete(s.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// captureSender records sent mail and optionally fails every send.
type captureSender struct {
	mu      sync.Mutex
	sent    []sentMail
	sendErr error
}

type sentMail struct {
	to      string
	subject string
	body    string
}

func (c *captureSender) Send(_ context.Context, to, subject, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestLedger_IssueAndVerify(t *testing.T) {
	store := newMemStore()
	sender := &captureSender{}
	ledger := NewLedger(store, sender)
	ctx := context.Background()

	code, err := ledger.Issue(ctx, "a@b.com")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, code, 100000)
	assert.LessOrEqual(t, code, 999999)

	require.NoError(t, ledger.Verify(ctx, "a@b.com", code))

	// Single use: the same code can never verify twice.
	assert.ErrorIs(t, ledger.Verify(ctx, "a@b.com", code), ErrCodeInvalid)

	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)
}

func TestLedger_ReissueInvalidatesPriorCode(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, &captureSender{})
	ctx := context.Background()

	first, err := ledger.Issue(ctx, "a@b.com")
	require.NoError(t, err)
	second, err := ledger.Issue(ctx, "a@b.com")
	require.NoError(t, err)

	if first != second {
		assert.ErrorIs(t, ledger.Verify(ctx, "a@b.com", first), ErrCodeInvalid)
	}
	assert.NoError(t, ledger.Verify(ctx, "a@b.com", second))
}

func TestLedger_VerifyExpiredCode(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, &captureSender{})
	ctx := context.Background()

	code, err := ledger.Issue(ctx, "a@b.com")
	require.NoError(t, err)

	store.advance(Expiry)

	assert.ErrorIs(t, ledger.Verify(ctx, "a@b.com", code), ErrCodeInvalid)
}

func TestLedger_VerifyWrongCodeKeepsRecord(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, &captureSender{})
	ctx := context.Background()

	code, err := ledger.Issue(ctx, "a@b.com")
	require.NoError(t, err)

	wrong := code + 1
	if wrong > 999999 {
		wrong = 100000
	}
	assert.ErrorIs(t, ledger.Verify(ctx, "a@b.com", wrong), ErrCodeInvalid)

	// A mismatch does not consume the live record.
	assert.NoError(t, ledger.Verify(ctx, "a@b.com", code))
}

func TestLedger_VerifyUnknownEmail(t *testing.T) {
	ledger := NewLedger(newMemStore(), &captureSender{})
	assert.ErrorIs(t, ledger.Verify(context.Background(), "nobody@b.com", 123456), ErrCodeInvalid)
}

func TestLedger_MailFailureDoesNotRollBackIssue(t *testing.T) {
	store := newMemStore()
	sender := &captureSender{sendErr: errors.New("smtp down")}

	var mu sync.Mutex
	var hookCalls []string
	ledger := NewLedger(store, sender, WithNotifyErrorHook(func(email string, err error) {
		mu.Lock()
		defer mu.Unlock()
		hookCalls = append(hookCalls, email)
	}))

	ctx := context.Background()
	code, err := ledger.Issue(ctx, "a@b.com")
	require.NoError(t, err)

	// The code is live even though delivery failed.
	assert.NoError(t, ledger.Verify(ctx, "a@b.com", code))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(hookCalls) == 1 && hookCalls[0] == "a@b.com"
	}, time.Second, 10*time.Millisecond)
}

func TestLedger_IssueFailsWhenStoreFails(t *testing.T) {
	store := newMemStore()
	store.setErr = errors.New("redis down")
	ledger := NewLedger(store, &captureSender{})

	_, err := ledger.Issue(context.Background(), "a@b.com")
	assert.Error(t, err)
}

func TestLedger_VerifiedMarkers(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, &captureSender{})
	ctx := context.Background()

	require.NoError(t, ledger.MarkVerified(ctx, PurposeSignup, "a@b.com"))

	// A signup marker must not satisfy the reset flow.
	found, err := ledger.ConsumeVerified(ctx, PurposeReset, "a@b.com")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = ledger.ConsumeVerified(ctx, PurposeSignup, "a@b.com")
	require.NoError(t, err)
	assert.True(t, found)

	// Markers are single use.
	found, err = ledger.ConsumeVerified(ctx, PurposeSignup, "a@b.com")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLedger_MarkerExpires(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store, &captureSender{})
	ctx := context.Background()

	require.NoError(t, ledger.MarkVerified(ctx, PurposeReset, "a@b.com"))
	store.advance(Expiry)

	found, err := ledger.ConsumeVerified(ctx, PurposeReset, "a@b.com")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, code, 100000)
		assert.LessOrEqual(t, code, 999999)
	}
}
