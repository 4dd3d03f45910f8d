// Package imap implements the mail gateway over plain IMAP for mailboxes
// without Gmail API access. The processed marker is a custom keyword flag.
package imap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	imap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"ccm_server/core/domain"
	"ccm_server/core/port/out"
	"ccm_server/pkg/logger"
)

const (
	mailboxInbox = "INBOX"

	// maxBodyBytes bounds how much of a message body is read into memory.
	maxBodyBytes = 4 << 20
)

type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
	Marker   string
}

// Gateway is a lazy-connecting IMAP client. All commands run under one
// mutex; the connection is established on first use and kept open.
type Gateway struct {
	opts Options

	mu       sync.Mutex
	conn     *imapclient.Client
	selected string
}

var _ out.MailGateway = (*Gateway)(nil)

func NewGateway(opts Options) *Gateway {
	return &Gateway{opts: opts}
}

func (g *Gateway) Name() string { return "imap" }

func (g *Gateway) ListUnprocessed(ctx context.Context, subjectPattern string) ([]out.MessageRef, error) {
	var refs []out.MessageRef
	err := g.withConn(ctx, func(conn *imapclient.Client) error {
		if err := g.selectMailbox(mailboxInbox); err != nil {
			return err
		}

		// SUBJECT is a case-insensitive substring match; it narrows the
		// candidate set and the orchestrator applies the exact rule.
		criteria := &imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: subjectPattern}},
			NotFlag: []imap.Flag{
				imap.FlagSeen,
				imap.Flag(g.opts.Marker),
			},
		}
		data, err := conn.UIDSearch(criteria, &imap.SearchOptions{ReturnAll: true}).Wait()
		if err != nil {
			return fmt.Errorf("UID SEARCH: %w", err)
		}

		uidSet, ok := data.All.(imap.UIDSet)
		if !ok {
			return nil
		}
		uids, _ := uidSet.Nums()
		for _, uid := range uids {
			refs = append(refs, out.MessageRef{ID: formatUID(uid)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("[IMAPGateway.ListUnprocessed] matched=%d", len(refs))
	return refs, nil
}

func (g *Gateway) Fetch(ctx context.Context, ref out.MessageRef) (*domain.EmailMessage, error) {
	uid, err := parseUID(ref.ID)
	if err != nil {
		return nil, err
	}

	var message *domain.EmailMessage
	err = g.withConn(ctx, func(conn *imapclient.Client) error {
		if err := g.selectMailbox(mailboxInbox); err != nil {
			return err
		}

		var uidSet imap.UIDSet
		uidSet.AddNum(uid)
		fetchOpts := &imap.FetchOptions{
			UID:          true,
			Flags:        true,
			InternalDate: true,
			BodySection:  []*imap.FetchItemBodySection{{}},
		}
		msgs, err := conn.Fetch(uidSet, fetchOpts).Collect()
		if err != nil {
			return fmt.Errorf("UID FETCH %s: %w", ref.ID, err)
		}
		if len(msgs) == 0 || len(msgs[0].BodySection) == 0 {
			return fmt.Errorf("message %s not found", ref.ID)
		}

		buf := msgs[0].BodySection[0]
		message, err = parseRawMessage(ref.ID, buf.Bytes)
		if err != nil {
			return err
		}
		message.Status = statusFromFlags(msgs[0].Flags, g.opts.Marker)
		if message.Date.IsZero() {
			message.Date = msgs[0].InternalDate
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

func (g *Gateway) MarkProcessed(ctx context.Context, ref out.MessageRef) error {
	uid, err := parseUID(ref.ID)
	if err != nil {
		return err
	}

	return g.withConn(ctx, func(conn *imapclient.Client) error {
		if err := g.selectMailbox(mailboxInbox); err != nil {
			return err
		}

		var uidSet imap.UIDSet
		uidSet.AddNum(uid)
		err := conn.Store(uidSet, &imap.StoreFlags{
			Op:     imap.StoreFlagsAdd,
			Silent: true,
			Flags:  []imap.Flag{imap.FlagSeen, imap.Flag(g.opts.Marker)},
		}, nil).Close()
		if err != nil {
			return fmt.Errorf("UID STORE %s: %w", ref.ID, err)
		}
		return nil
	})
}

func (g *Gateway) Search(ctx context.Context, query string) ([]*domain.EmailMessage, error) {
	var refs []out.MessageRef
	err := g.withConn(ctx, func(conn *imapclient.Client) error {
		if err := g.selectMailbox(mailboxInbox); err != nil {
			return err
		}

		criteria := &imap.SearchCriteria{}
		if query != "" {
			criteria.Header = []imap.SearchCriteriaHeaderField{{Key: "Subject", Value: query}}
		}
		data, err := conn.UIDSearch(criteria, &imap.SearchOptions{ReturnAll: true}).Wait()
		if err != nil {
			return fmt.Errorf("UID SEARCH: %w", err)
		}
		uidSet, ok := data.All.(imap.UIDSet)
		if !ok {
			return nil
		}
		uids, _ := uidSet.Nums()
		for _, uid := range uids {
			refs = append(refs, out.MessageRef{ID: formatUID(uid)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.EmailMessage, 0, len(refs))
	for _, ref := range refs {
		msg, err := g.Fetch(ctx, ref)
		if err != nil {
			logger.Warn("[IMAPGateway.Search] fetch of %s failed: %v", ref.ID, err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Close logs out and disconnects.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return nil
	}
	conn := g.conn
	g.conn = nil
	g.selected = ""
	return conn.Logout().Wait()
}

// withConn runs fn with the active connection, connecting if necessary.
// It holds the mutex for the duration of fn.
func (g *Gateway) withConn(_ context.Context, fn func(*imapclient.Client) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.connect(); err != nil {
		return err
	}
	return fn(g.conn)
}

// connect establishes and authenticates the connection. Caller must hold mu.
func (g *Gateway) connect() error {
	if g.conn != nil {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", g.opts.Host, g.opts.Port)
	var (
		conn *imapclient.Client
		err  error
	)
	if g.opts.TLS {
		conn, err = imapclient.DialTLS(addr, nil)
	} else {
		conn, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		return fmt.Errorf("dial IMAP %s: %w", addr, err)
	}

	if err := conn.Login(g.opts.Username, g.opts.Password).Wait(); err != nil {
		_ = conn.Close()
		return fmt.Errorf("IMAP login: %w", err)
	}

	g.conn = conn
	g.selected = ""
	logger.Debug("[IMAPGateway] connected as %s", g.opts.Username)
	return nil
}

// selectMailbox selects a mailbox if not already selected. Caller must hold mu.
func (g *Gateway) selectMailbox(mailbox string) error {
	if g.selected == mailbox {
		return nil
	}
	if _, err := g.conn.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("SELECT %q: %w", mailbox, err)
	}
	g.selected = mailbox
	return nil
}

func statusFromFlags(flags []imap.Flag, marker string) domain.EmailStatus {
	status := domain.EmailStatusUnread
	for _, flag := range flags {
		if flag == imap.FlagSeen {
			status = domain.EmailStatusRead
		}
		if string(flag) == marker {
			return domain.EmailStatusProcessed
		}
	}
	return status
}

// parseRawMessage decodes an RFC 822 message into the domain form.
func parseRawMessage(id string, raw []byte) (*domain.EmailMessage, error) {
	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse message %s: %w", id, err)
	}

	message := &domain.EmailMessage{MessageID: id}
	header := reader.Header
	if subject, err := header.Subject(); err == nil {
		message.Subject = subject
	}
	if addrs, err := header.AddressList("From"); err == nil && len(addrs) > 0 {
		message.Sender = addrs[0].String()
	}
	if date, err := header.Date(); err == nil {
		message.Date = date
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Warn("[IMAPGateway] unreadable part of %s: %v", id, err)
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, err := readLimited(part.Body, maxBodyBytes)
			if err != nil {
				continue
			}
			switch contentType {
			case "text/html":
				if message.BodyHTML == "" {
					message.BodyHTML = string(body)
				}
			case "text/plain":
				if message.Body == "" {
					message.Body = string(body)
				}
			}
		case *mail.AttachmentHeader:
			filename, _ := h.Filename()
			contentType, _, _ := h.ContentType()
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return nil, fmt.Errorf("read attachment %q of %s: %w", filename, id, err)
			}
			message.Attachments = append(message.Attachments, &domain.Attachment{
				Filename:    filename,
				ContentType: contentType,
				Size:        int64(len(data)),
				Data:        data,
			})
		}
	}

	return message, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, limit))
}

func formatUID(uid imap.UID) string {
	return strconv.FormatUint(uint64(uid), 10)
}

func parseUID(id string) (imap.UID, error) {
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid IMAP message id %q: %w", id, err)
	}
	return imap.UID(n), nil
}
