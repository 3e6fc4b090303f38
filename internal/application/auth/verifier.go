package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"

	"github.com/gram-sevak/internal/domain"
)

func (s *service) VerifyCode(ctx context.Context, email, code string) (string, error) {
	identity := domain.NormalizeEmail(email)
	if identity == "" || code == "" {
		return "", fmt.Errorf("%w: email and code are required", domain.ErrInvalidInput)
	}

	rec, found, err := s.store.Get(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("load code: %w", err)
	}
	if !found {
		return "", domain.ErrNoCodeFound
	}

	if rec.Expired(s.clock.Now()) {
		if _, err := s.store.Consume(ctx, identity, rec); err != nil {
			slog.Warn("failed to drop expired code", "email", identity, "err", err)
		}
		return "", domain.ErrCodeExpired
	}

	// A wrong guess keeps the record so the user can retry until expiry.
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(code)) != 1 {
		return "", domain.ErrInvalidCode
	}

	consumed, err := s.store.Consume(ctx, identity, rec)
	if err != nil {
		return "", fmt.Errorf("consume code: %w", err)
	}
	if !consumed {
		// Another verification used it first, or a newer code replaced it.
		return "", domain.ErrNoCodeFound
	}
	slog.Info("login code verified", "email", identity)
	return identity, nil
}
