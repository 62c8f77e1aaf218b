package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"time"

	"github.com/afrocoder16/mkc-songbook/internal/mail"
)

// Expiry is how long an issued code stays verifiable. Records are purged by
// the store's TTL, with no grace period and no renewal.
const Expiry = 5 * time.Minute

const (
	mailSubject  = "MKC-Choir Email Verification"
	mailTemplate = "Your verification code is %d"

	codeKeyPrefix     = "otp:code:"
	verifiedKeyPrefix = "otp:verified:"
)

// Purpose distinguishes the signup flow from the password-reset flow. A
// verified marker for one purpose cannot complete the other.
type Purpose string

const (
	PurposeSignup Purpose = "signup"
	PurposeReset  Purpose = "reset"
)

// ErrCodeInvalid covers missing, expired, already-consumed and mismatched
// codes alike, so callers cannot probe which emails hold live challenges.
var ErrCodeInvalid = errors.New("verification code is invalid or has expired")

// Store is the durable key/value backend the ledger writes through. Unlike
// the read-through cache, errors propagate: a failed write means the code was
// not issued.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Delete(ctx context.Context, key string) error
}

// Ledger issues, verifies and expires one-time passcodes keyed by email.
// Mail delivery is fire and forget: a send failure is reported to the
// notifyErr hook and never rolls back the issued code.
type Ledger struct {
	store     Store
	sender    mail.Sender
	notifyErr func(email string, err error)
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithNotifyErrorHook replaces the default send-failure logger.
func WithNotifyErrorHook(hook func(email string, err error)) Option {
	return func(l *Ledger) {
		l.notifyErr = hook
	}
}

// NewLedger builds a Ledger on the given store and mail sender.
func NewLedger(store Store, sender mail.Sender, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		sender: sender,
		notifyErr: func(email string, err error) {
			log.Printf("otp: mail delivery to %s failed: %v", email, err)
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Issue generates a fresh code for email, replacing any prior unexpired one,
// and kicks off the notification mail. It returns once the code is persisted;
// the caller gets the code back so tests and the seeding tooling can use it.
func (l *Ledger) Issue(ctx context.Context, email string) (int, error) {
	code, err := generateCode()
	if err != nil {
		return 0, fmt.Errorf("generate code: %w", err)
	}

	if err := l.store.Set(ctx, codeKey(email), strconv.Itoa(code), Expiry); err != nil {
		return 0, fmt.Errorf("persist code: %w", err)
	}

	go l.notify(email, code)

	return code, nil
}

// Verify consumes the live code for email. Success requires an unexpired
// record whose code equals the supplied one numerically; the record is
// deleted so it can never verify twice. All failure shapes collapse into
// ErrCodeInvalid.
func (l *Ledger) Verify(ctx context.Context, email string, code int) error {
	value, found, err := l.store.Get(ctx, codeKey(email))
	if err != nil {
		return fmt.Errorf("read code: %w", err)
	}
	if !found {
		return ErrCodeInvalid
	}
	stored, err := strconv.Atoi(value)
	if err != nil || stored != code {
		return ErrCodeInvalid
	}
	if err := l.store.Delete(ctx, codeKey(email)); err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	return nil
}

// MarkVerified records that email passed verification for purpose. The
// marker is what the flow controller trusts later; clients never declare
// their own state.
func (l *Ledger) MarkVerified(ctx context.Context, purpose Purpose, email string) error {
	if err := l.store.Set(ctx, verifiedKey(purpose, email), "1", Expiry); err != nil {
		return fmt.Errorf("persist verified marker: %w", err)
	}
	return nil
}

// ConsumeVerified removes the verification marker for purpose and reports
// whether it existed. A marker is single use.
func (l *Ledger) ConsumeVerified(ctx context.Context, purpose Purpose, email string) (bool, error) {
	_, found, err := l.store.Get(ctx, verifiedKey(purpose, email))
	if err != nil {
		return false, fmt.Errorf("read verified marker: %w", err)
	}
	if !found {
		return false, nil
	}
	if err := l.store.Delete(ctx, verifiedKey(purpose, email)); err != nil {
		return false, fmt.Errorf("consume verified marker: %w", err)
	}
	return true, nil
}

func (l *Ledger) notify(email string, code int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	body := fmt.Sprintf(mailTemplate, code)
	if err := l.sender.Send(ctx, email, mailSubject, body); err != nil {
		l.notifyErr(email, err)
	}
}

// generateCode draws a uniform six-digit code. Codes are compared
// numerically, so the range deliberately excludes leading zeros.
func generateCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()) + 100000, nil
}

func codeKey(email string) string {
	return codeKeyPrefix + email
}

func verifiedKey(purpose Purpose, email string) string {
	return verifiedKeyPrefix + string(purpose) + ":" + email
}
