package http

import (
	"github.com/gram-sevak/internal/application/auth"
	"github.com/gram-sevak/internal/application/complaint"
	jwtinfra "github.com/gram-sevak/internal/infrastructure/jwt"
	"github.com/gram-sevak/internal/infrastructure/smtp"
	"github.com/gram-sevak/internal/pkg/clock"
	"github.com/gram-sevak/internal/pkg/otpcode"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Credentials auth.CredentialStore
	Mailer      smtp.Mailer
	CodeGen     otpcode.Generator
	Clock       clock.Clock               // nil means the system clock
	JWTProvider *jwtinfra.Provider        // nil disables session tokens
	Attachments complaint.AttachmentStore // nil keeps every attachment inline
}
