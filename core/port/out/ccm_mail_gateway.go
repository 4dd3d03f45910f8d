package out

import (
	"context"

	"ccm_server/core/domain"
)

// MessageRef is an opaque mailbox-assigned message handle.
type MessageRef struct {
	ID string
}

// MailGateway abstracts the mailbox. Implementations exist for the Gmail API
// and plain IMAP; selection is by configuration.
type MailGateway interface {
	// Name identifies the variant ("gmail" or "imap").
	Name() string

	// ListUnprocessed returns refs of unread messages whose subject matches
	// the configured pattern and that do not yet carry the processed marker.
	// Ordering is mailbox-native.
	ListUnprocessed(ctx context.Context, subjectPattern string) ([]MessageRef, error)

	// Fetch retrieves the full message including attachment data.
	Fetch(ctx context.Context, ref MessageRef) (*domain.EmailMessage, error)

	// MarkProcessed applies the durable processed marker. Idempotent.
	MarkProcessed(ctx context.Context, ref MessageRef) error

	// Search is a debug read-through over the mailbox.
	Search(ctx context.Context, query string) ([]*domain.EmailMessage, error)
}
