package complaint

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/gram-sevak/internal/domain"
	"github.com/gram-sevak/internal/infrastructure/smtp"
	"github.com/gram-sevak/internal/pkg/clock"
	"github.com/gram-sevak/internal/pkg/id"
	"github.com/gram-sevak/internal/pkg/validate"
	"github.com/samber/lo"
)

// LinkTTL is how long download links for offloaded attachments stay valid.
const LinkTTL = 7 * 24 * time.Hour

const (
	defaultImageType = "image/png"
	defaultVoiceType = "audio/webm"
	defaultVoiceName = "voice-complaint.webm"
)

// FileUpload is a file sent by the browser as a data URL.
type FileUpload struct {
	Base64 string `json:"base64"`
	Type   string `json:"type"`
	Name   string `json:"name"`
}

// Submission is the complaint form as posted by the client.
type Submission struct {
	Title          string       `json:"title" validate:"required"`
	Description    string       `json:"description"`
	Category       string       `json:"category" validate:"required"`
	Priority       string       `json:"priority" validate:"required,oneof=low medium high urgent"`
	Location       string       `json:"location"`
	ComplainerName string       `json:"complainerName"`
	Images         []FileUpload `json:"images"`
	VoiceRecording *FileUpload  `json:"voiceRecording"`
}

// AttachmentStore keeps attachments too large to mail and returns a download link.
type AttachmentStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte, ttl time.Duration) (string, error)
}

// Service turns a submission into an email to the complaints desk.
type Service interface {
	// Submit validates and mails the complaint and returns its reference.
	// submittedBy is the signed-in email, or empty.
	Submit(ctx context.Context, sub Submission, submittedBy string) (reference string, err error)
}

// ServiceDeps bundles the collaborators and settings of the complaint service.
type ServiceDeps struct {
	Mailer      smtp.Mailer
	Attachments AttachmentStore // optional
	Recipient   string
	Cc          string
	Location    *time.Location
	InlineLimit int64 // bytes of attachments mailed inline before offloading
	Clock       clock.Clock
}

type service struct {
	mailer      smtp.Mailer
	attachments AttachmentStore
	recipient   string
	cc          string
	loc         *time.Location
	inlineLimit int64
	clock       clock.Clock
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		mailer:      deps.Mailer,
		attachments: deps.Attachments,
		recipient:   deps.Recipient,
		cc:          deps.Cc,
		loc:         deps.Location,
		inlineLimit: deps.InlineLimit,
		clock:       deps.Clock,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	return s
}

func (s *service) Submit(ctx context.Context, sub Submission, submittedBy string) (string, error) {
	sub = normalize(sub)
	if err := validate.Struct(&sub); err != nil {
		return "", err
	}

	photos, voice, err := decodeUploads(sub)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	c := &domain.Complaint{
		Reference:      id.NewAt(now),
		Title:          sub.Title,
		Description:    sub.Description,
		Category:       sub.Category,
		Priority:       sub.Priority,
		Location:       sub.Location,
		ComplainerName: sub.ComplainerName,
		SubmittedBy:    submittedBy,
		SubmittedAt:    now.In(s.loc),
		Photos:         photos,
		VoiceNote:      voice,
	}

	msg, err := s.compose(ctx, c)
	if err != nil {
		return "", err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		slog.Error("failed to send complaint", "reference", c.Reference, "err", err)
		return "", fmt.Errorf("%w: %w", domain.ErrDispatchFailed, err)
	}
	slog.Info("complaint sent",
		"reference", c.Reference,
		"category", c.Category,
		"priority", c.Priority,
		"attachments", len(c.Attachments()),
	)
	return c.Reference, nil
}

func (s *service) compose(ctx context.Context, c *domain.Complaint) (smtp.Message, error) {
	atts := c.Attachments()
	view := newView(c)

	total := lo.SumBy(atts, func(a domain.Attachment) int64 { return int64(len(a.Data)) })
	var inline []smtp.Attachment
	if s.attachments != nil && s.inlineLimit > 0 && total > s.inlineLimit {
		links, err := s.offload(ctx, c.Reference, atts)
		if err != nil {
			return smtp.Message{}, err
		}
		view.Links = links
	} else {
		inline = lo.Map(atts, func(a domain.Attachment, _ int) smtp.Attachment {
			return smtp.Attachment{Filename: a.Filename, ContentType: a.ContentType, Data: a.Data}
		})
	}

	html, text, err := render(view)
	if err != nil {
		return smtp.Message{}, err
	}
	msg := smtp.Message{
		To:          []string{s.recipient},
		Subject:     "NEW GRAM-SEVAK COMPLAINT: " + c.Title,
		TextBody:    text,
		HTMLBody:    html,
		Attachments: inline,
	}
	if s.cc != "" {
		msg.Cc = []string{s.cc}
	}
	return msg, nil
}

func (s *service) offload(ctx context.Context, ref string, atts []domain.Attachment) ([]Link, error) {
	links := make([]Link, 0, len(atts))
	for i, a := range atts {
		key := fmt.Sprintf("complaints/%s/%d-%s", ref, i+1, a.Filename)
		url, err := s.attachments.Upload(ctx, key, a.ContentType, a.Data, LinkTTL)
		if err != nil {
			return nil, fmt.Errorf("offload attachment %s: %w", a.Filename, err)
		}
		links = append(links, Link{Name: a.Filename, URL: url})
	}
	slog.Info("attachments offloaded", "reference", ref, "count", len(links))
	return links, nil
}

func normalize(sub Submission) Submission {
	sub.Title = strings.TrimSpace(sub.Title)
	sub.Category = strings.TrimSpace(sub.Category)
	sub.Priority = strings.ToLower(strings.TrimSpace(sub.Priority))
	sub.Location = strings.TrimSpace(sub.Location)
	sub.Description = strings.TrimSpace(sub.Description)
	sub.ComplainerName = strings.TrimSpace(sub.ComplainerName)
	return sub
}

func decodeUploads(sub Submission) ([]domain.Attachment, *domain.Attachment, error) {
	photos := make([]domain.Attachment, 0, len(sub.Images))
	for i, img := range sub.Images {
		a, err := decodeUpload(img, fmt.Sprintf("photo-%d.png", i+1), defaultImageType)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: images[%d]: %v", domain.ErrInvalidInput, i, err)
		}
		photos = append(photos, a)
	}

	var voice *domain.Attachment
	if sub.VoiceRecording != nil && sub.VoiceRecording.Base64 != "" {
		a, err := decodeUpload(*sub.VoiceRecording, defaultVoiceName, defaultVoiceType)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: voiceRecording: %v", domain.ErrInvalidInput, err)
		}
		voice = &a
	}
	return photos, voice, nil
}

func decodeUpload(f FileUpload, defaultName, defaultType string) (domain.Attachment, error) {
	data, err := decodeDataURL(f.Base64)
	if err != nil {
		return domain.Attachment{}, err
	}
	name := sanitizeFilename(f.Name)
	if name == "" {
		name = defaultName
	}
	ct := f.Type
	if ct == "" {
		ct = defaultType
	}
	return domain.Attachment{Filename: name, ContentType: ct, Data: data}, nil
}

// decodeDataURL decodes "data:<type>;base64,<payload>" or a bare base64 payload.
func decodeDataURL(s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("empty file")
	}
	if strings.HasPrefix(s, "data:") {
		i := strings.IndexByte(s, ',')
		if i < 0 {
			return nil, fmt.Errorf("malformed data url")
		}
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
