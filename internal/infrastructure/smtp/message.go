package smtp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"
	"time"
)

// Message is a provider-agnostic email payload.
type Message struct {
	From        string // optional; the mailer's default sender is used when empty
	To          []string
	Cc          []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Attachment is a file carried by a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Recipients returns To followed by Cc.
func (m Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc))
	out = append(out, m.To...)
	return append(out, m.Cc...)
}

// build renders msg as an RFC 5322 message with MIME parts.
//
//	multipart/mixed
//	├── multipart/alternative (text/plain, text/html)
//	└── attachments (base64)
func build(from string, msg Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	mixed := multipart.NewWriter(&buf)

	hdr := []string{
		"From: " + from,
		"To: " + strings.Join(msg.To, ", "),
	}
	if len(msg.Cc) > 0 {
		hdr = append(hdr, "Cc: "+strings.Join(msg.Cc, ", "))
	}
	hdr = append(hdr,
		"Subject: "+mime.QEncoding.Encode("utf-8", msg.Subject),
		"Date: "+now.Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		fmt.Sprintf("Content-Type: multipart/mixed; boundary=%s", mixed.Boundary()),
	)
	buf.WriteString(strings.Join(hdr, "\r\n") + "\r\n\r\n")

	altBuf := &bytes.Buffer{}
	alt := multipart.NewWriter(altBuf)
	if err := writeBodyPart(alt, "text/plain; charset=UTF-8", msg.TextBody); err != nil {
		return nil, err
	}
	if msg.HTMLBody != "" {
		if err := writeBodyPart(alt, "text/html; charset=UTF-8", msg.HTMLBody); err != nil {
			return nil, err
		}
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}

	altPart, err := mixed.CreatePart(textproto.MIMEHeader{
		"Content-Type": {fmt.Sprintf("multipart/alternative; boundary=%s", alt.Boundary())},
	})
	if err != nil {
		return nil, err
	}
	if _, err := altPart.Write(altBuf.Bytes()); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		if err := writeAttachment(mixed, a); err != nil {
			return nil, fmt.Errorf("attach %s: %w", a.Filename, err)
		}
	}
	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeBodyPart(w *multipart.Writer, contentType, body string) error {
	p, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {contentType},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return err
	}
	return writeBase64Lines(p, []byte(body))
}

func writeAttachment(w *multipart.Writer, a Attachment) error {
	ct := a.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	p, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType(ct, map[string]string{"name": a.Filename})},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return err
	}
	return writeBase64Lines(p, a.Data)
}

// writeBase64Lines writes data as base64 wrapped at 76 characters (RFC 2045).
func writeBase64Lines(w io.Writer, data []byte) error {
	const lineLen = 76
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > lineLen {
		if _, err := w.Write([]byte(enc[:lineLen] + "\r\n")); err != nil {
			return err
		}
		enc = enc[lineLen:]
	}
	_, err := w.Write([]byte(enc + "\r\n"))
	return err
}
