package domain

import "time"

// Complaint priorities accepted by the portal.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Complaint is a citizen complaint ready to be rendered into an email.
type Complaint struct {
	Reference      string
	Title          string
	Description    string
	Category       string
	Priority       string
	Location       string
	ComplainerName string
	SubmittedBy    string // signed-in email, empty for anonymous submissions
	SubmittedAt    time.Time
	Photos         []Attachment
	VoiceNote      *Attachment
}

// Attachment is a decoded file that travels with a complaint.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Attachments returns photos followed by the voice note, if any.
func (c *Complaint) Attachments() []Attachment {
	out := make([]Attachment, 0, len(c.Photos)+1)
	out = append(out, c.Photos...)
	if c.VoiceNote != nil {
		out = append(out, *c.VoiceNote)
	}
	return out
}
