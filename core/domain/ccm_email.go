package domain

import (
	"strings"
	"time"
)

// EmailStatus is the mailbox-side lifecycle of a message.
type EmailStatus string

const (
	EmailStatusUnread    EmailStatus = "unread"
	EmailStatusRead      EmailStatus = "read"
	EmailStatusProcessed EmailStatus = "processed"
)

// Attachment is a blob extracted from an incoming message. Data is owned by
// the orchestrator for the duration of one cycle and released after upload.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size"`
	Data        []byte `json:"-"`
}

// IsPDF reports whether the attachment looks like a PDF, by declared content
// type or filename suffix.
func (a *Attachment) IsPDF() bool {
	if a == nil {
		return false
	}
	if strings.EqualFold(a.ContentType, "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(a.Filename), ".pdf")
}

// IsSpreadsheet reports whether the attachment is an Excel workbook.
func (a *Attachment) IsSpreadsheet() bool {
	if a == nil {
		return false
	}
	name := strings.ToLower(a.Filename)
	return strings.HasSuffix(name, ".xlsx") ||
		strings.HasSuffix(name, ".xlsm") ||
		strings.HasSuffix(name, ".xls")
}

// EmailMessage is an incoming mailbox message, read-only to the core.
type EmailMessage struct {
	MessageID   string        `json:"message_id"`
	Subject     string        `json:"subject"`
	Sender      string        `json:"sender"`
	Date        time.Time     `json:"date"`
	Body        string        `json:"body"`
	BodyHTML    string        `json:"body_html,omitempty"`
	Status      EmailStatus   `json:"status"`
	Attachments []*Attachment `json:"attachments,omitempty"`
	ThreadID    string        `json:"thread_id,omitempty"`
	Labels      []string      `json:"labels,omitempty"`
}
