package auth

import (
	"context"
	"time"

	"github.com/gram-sevak/internal/domain"
	"github.com/gram-sevak/internal/infrastructure/smtp"
	"github.com/gram-sevak/internal/pkg/clock"
	"github.com/gram-sevak/internal/pkg/otpcode"
)

// CodeTTL is how long an issued code stays valid.
const CodeTTL = 5 * time.Minute

// CredentialStore holds at most one outstanding credential record per identity.
// Implementations must make each operation atomic with respect to the others.
type CredentialStore interface {
	// Put replaces any record held for identity.
	Put(ctx context.Context, identity string, rec domain.CredentialRecord) error
	// Get returns the record for identity; found is false when there is none.
	Get(ctx context.Context, identity string) (rec domain.CredentialRecord, found bool, err error)
	// Delete removes the record for identity if present.
	Delete(ctx context.Context, identity string) error
	// Consume removes the record for identity only if it still equals rec and
	// reports whether it did.
	Consume(ctx context.Context, identity string, rec domain.CredentialRecord) (bool, error)
}

// Service is the passwordless email login flow.
type Service interface {
	// RequestCode issues a fresh code for email and mails it, replacing any
	// code issued earlier for the same address.
	RequestCode(ctx context.Context, email string) error
	// VerifyCode checks code against the outstanding record for email and
	// returns the normalized identity on success.
	VerifyCode(ctx context.Context, email, code string) (identity string, err error)
}

// ServiceDeps bundles the collaborators of the login flow.
type ServiceDeps struct {
	Store     CredentialStore
	Mailer    smtp.Mailer
	Generator otpcode.Generator
	Clock     clock.Clock
}

type service struct {
	store     CredentialStore
	mailer    smtp.Mailer
	generator otpcode.Generator
	clock     clock.Clock
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		store:     deps.Store,
		mailer:    deps.Mailer,
		generator: deps.Generator,
		clock:     deps.Clock,
	}
	if s.generator == nil {
		s.generator = otpcode.PseudoRandom{}
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	return s
}
