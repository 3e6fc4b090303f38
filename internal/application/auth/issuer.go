package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gram-sevak/internal/domain"
	"github.com/gram-sevak/internal/infrastructure/smtp"
)

const codeSubject = "Your Gram-Sevak login code"

func (s *service) RequestCode(ctx context.Context, email string) error {
	identity := domain.NormalizeEmail(email)
	if identity == "" {
		return fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}

	code, err := s.generator.Generate()
	if err != nil {
		return err
	}
	rec := domain.CredentialRecord{
		Code:      code,
		ExpiresAt: s.clock.Now().Add(CodeTTL),
	}
	if err := s.store.Put(ctx, identity, rec); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	// The record is already stored; a failed send leaves it valid but undelivered.
	if err := s.mailer.Send(ctx, codeMessage(identity, code)); err != nil {
		slog.Error("failed to send login code", "email", identity, "err", err)
		return fmt.Errorf("%w: %w", domain.ErrDispatchFailed, err)
	}
	slog.Info("login code issued", "email", identity, "expires_at", rec.ExpiresAt)
	return nil
}

func codeMessage(to, code string) smtp.Message {
	minutes := int(CodeTTL.Minutes())
	var html strings.Builder
	fmt.Fprintf(&html, "<p>Your login code is: <b>%s</b></p>", code)
	fmt.Fprintf(&html, "<p>It expires in %d minutes. If you did not request it, ignore this email.</p>", minutes)
	return smtp.Message{
		To:       []string{to},
		Subject:  codeSubject,
		TextBody: fmt.Sprintf("Your login code is: %s\n\nIt expires in %d minutes.", code, minutes),
		HTMLBody: html.String(),
	}
}
