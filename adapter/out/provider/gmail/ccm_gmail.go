// Package gmail implements the mail gateway over the Gmail REST API.
package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"ccm_server/core/domain"
	"ccm_server/core/port/out"
	"ccm_server/pkg/logger"
)

const searchPageSize = 50

// Gateway talks to one Gmail mailbox. The processed marker is a user label,
// created on first use.
type Gateway struct {
	service *gmail.Service
	email   string
	marker  string

	mu      sync.Mutex
	labelID string
}

var _ out.MailGateway = (*Gateway)(nil)

type Options struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Marker       string
}

func NewGateway(ctx context.Context, opts Options) (*Gateway, error) {
	conf := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gmail.GmailModifyScope},
	}
	client := conf.Client(ctx, &oauth2.Token{RefreshToken: opts.RefreshToken})

	service, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	profile, err := service.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	return &Gateway{
		service: service,
		email:   profile.EmailAddress,
		marker:  opts.Marker,
	}, nil
}

func (g *Gateway) Name() string { return "gmail" }

// Email returns the mailbox address the gateway authenticated as.
func (g *Gateway) Email() string { return g.email }

func (g *Gateway) ListUnprocessed(ctx context.Context, subjectPattern string) ([]out.MessageRef, error) {
	query := fmt.Sprintf("is:unread subject:%q -label:%s", subjectPattern, g.marker)

	var refs []out.MessageRef
	pageToken := ""
	for {
		req := g.service.Users.Messages.List("me").Q(query).MaxResults(searchPageSize)
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		resp, err := req.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		for _, m := range resp.Messages {
			refs = append(refs, out.MessageRef{ID: m.Id})
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	logger.Debug("[GmailGateway.ListUnprocessed] query=%q matched=%d", query, len(refs))
	return refs, nil
}

func (g *Gateway) Fetch(ctx context.Context, ref out.MessageRef) (*domain.EmailMessage, error) {
	msg, err := g.service.Users.Messages.Get("me", ref.ID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", ref.ID, err)
	}

	message, pending := g.decodeMessage(msg)
	if err := g.downloadAttachments(ctx, ref.ID, pending); err != nil {
		return nil, err
	}
	return message, nil
}

func (g *Gateway) MarkProcessed(ctx context.Context, ref out.MessageRef) error {
	labelID, err := g.ensureLabel(ctx)
	if err != nil {
		return err
	}

	_, err = g.service.Users.Messages.Modify("me", ref.ID, &gmail.ModifyMessageRequest{
		AddLabelIds:    []string{labelID},
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to mark message %s: %w", ref.ID, err)
	}
	return nil
}

// Search fetches full messages with bounded concurrency to stay under the
// per-user rate limit.
func (g *Gateway) Search(ctx context.Context, query string) ([]*domain.EmailMessage, error) {
	resp, err := g.service.Users.Messages.List("me").
		Q(query).
		MaxResults(searchPageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(resp.Messages) == 0 {
		return []*domain.EmailMessage{}, nil
	}

	const maxConcurrency = 5
	type result struct {
		index int
		msg   *domain.EmailMessage
		err   error
	}

	results := make(chan result, len(resp.Messages))
	semaphore := make(chan struct{}, maxConcurrency)

	for i, m := range resp.Messages {
		go func(idx int, id string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			msg, err := g.Fetch(ctx, out.MessageRef{ID: id})
			results <- result{index: idx, msg: msg, err: err}
		}(i, m.Id)
	}

	ordered := make([]*domain.EmailMessage, len(resp.Messages))
	for range resp.Messages {
		r := <-results
		if r.err != nil {
			logger.Warn("[GmailGateway.Search] fetch failed: %v", r.err)
			continue
		}
		ordered[r.index] = r.msg
	}

	messages := make([]*domain.EmailMessage, 0, len(ordered))
	for _, msg := range ordered {
		if msg != nil {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

// ensureLabel resolves the marker label id, creating the label on first use.
func (g *Gateway) ensureLabel(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.labelID != "" {
		return g.labelID, nil
	}

	resp, err := g.service.Users.Labels.List("me").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to list labels: %w", err)
	}
	for _, label := range resp.Labels {
		if label.Name == g.marker {
			g.labelID = label.Id
			return g.labelID, nil
		}
	}

	created, err := g.service.Users.Labels.Create("me", &gmail.Label{
		Name:                  g.marker,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to create label %q: %w", g.marker, err)
	}
	g.labelID = created.Id
	return g.labelID, nil
}

// pendingAttachment pairs a decoded attachment with the provider id its data
// still has to be fetched from.
type pendingAttachment struct {
	attachment *domain.Attachment
	providerID string
}

func (g *Gateway) decodeMessage(msg *gmail.Message) (*domain.EmailMessage, []pendingAttachment) {
	message := &domain.EmailMessage{
		MessageID: msg.Id,
		ThreadID:  msg.ThreadId,
		Labels:    msg.LabelIds,
		Date:      time.Unix(msg.InternalDate/1000, 0),
		Status:    domain.EmailStatusRead,
	}
	for _, label := range msg.LabelIds {
		if label == "UNREAD" {
			message.Status = domain.EmailStatusUnread
		}
		if g.labelID != "" && label == g.labelID {
			message.Status = domain.EmailStatusProcessed
		}
	}

	var pending []pendingAttachment
	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "From":
				message.Sender = header.Value
			case "Subject":
				message.Subject = header.Value
			}
		}
		message.BodyHTML, message.Body = decodeBody(msg.Payload)
		message.Attachments, pending = collectAttachmentParts(msg.Payload)
	}

	return message, pending
}

// downloadAttachments fetches attachment bodies with bounded concurrency.
func (g *Gateway) downloadAttachments(ctx context.Context, messageID string, pending []pendingAttachment) error {
	if len(pending) == 0 {
		return nil
	}

	const maxConcurrency = 5
	errs := make(chan error, len(pending))
	semaphore := make(chan struct{}, maxConcurrency)

	for _, p := range pending {
		go func(p pendingAttachment) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			body, err := g.service.Users.Messages.Attachments.Get("me", messageID, p.providerID).Context(ctx).Do()
			if err != nil {
				errs <- err
				return
			}
			data, err := base64.URLEncoding.DecodeString(body.Data)
			if err != nil {
				errs <- err
				return
			}
			p.attachment.Data = data
			p.attachment.Size = int64(len(data))
			errs <- nil
		}(p)
	}

	for range pending {
		if err := <-errs; err != nil {
			return fmt.Errorf("failed to download attachment of %s: %w", messageID, err)
		}
	}
	return nil
}

func decodeBody(payload *gmail.MessagePart) (html, text string) {
	if payload == nil {
		return "", ""
	}

	if payload.MimeType == "text/html" && payload.Body != nil {
		data, _ := base64.URLEncoding.DecodeString(payload.Body.Data)
		html = string(data)
	}
	if payload.MimeType == "text/plain" && payload.Body != nil {
		data, _ := base64.URLEncoding.DecodeString(payload.Body.Data)
		text = string(data)
	}

	for _, part := range payload.Parts {
		h, t := decodeBody(part)
		if html == "" && h != "" {
			html = h
		}
		if text == "" && t != "" {
			text = t
		}
	}
	return html, text
}

func collectAttachmentParts(payload *gmail.MessagePart) ([]*domain.Attachment, []pendingAttachment) {
	var attachments []*domain.Attachment
	var pending []pendingAttachment
	if payload == nil {
		return attachments, pending
	}

	if payload.Filename != "" && payload.Body != nil {
		att := &domain.Attachment{
			Filename:    payload.Filename,
			ContentType: payload.MimeType,
			Size:        payload.Body.Size,
		}
		switch {
		case payload.Body.AttachmentId != "":
			pending = append(pending, pendingAttachment{attachment: att, providerID: payload.Body.AttachmentId})
		case payload.Body.Data != "":
			if data, err := base64.URLEncoding.DecodeString(payload.Body.Data); err == nil {
				att.Data = data
				att.Size = int64(len(data))
			}
		}
		attachments = append(attachments, att)
	}

	for _, part := range payload.Parts {
		nested, nestedPending := collectAttachmentParts(part)
		attachments = append(attachments, nested...)
		pending = append(pending, nestedPending...)
	}
	return attachments, pending
}
