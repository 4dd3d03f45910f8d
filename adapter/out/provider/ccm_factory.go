// Package provider selects the configured mail gateway variant.
package provider

import (
	"context"
	"fmt"

	"ccm_server/adapter/out/provider/gmail"
	"ccm_server/adapter/out/provider/imap"
	"ccm_server/config"
	"ccm_server/core/port/out"
	"ccm_server/pkg/logger"
)

// NewMailGateway builds the gateway named by MAIL_PROVIDER.
func NewMailGateway(ctx context.Context, cfg *config.Config) (out.MailGateway, error) {
	switch cfg.MailProvider {
	case config.MailProviderGmail:
		gateway, err := gmail.NewGateway(ctx, gmail.Options{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RefreshToken: cfg.GoogleRefreshToken,
			Marker:       cfg.ProcessedMarker,
		})
		if err != nil {
			return nil, fmt.Errorf("gmail gateway: %w", err)
		}
		logger.Info("[MailGateway] using gmail mailbox %s", gateway.Email())
		return gateway, nil

	case config.MailProviderIMAP:
		gateway := imap.NewGateway(imap.Options{
			Host:     cfg.IMAPHost,
			Port:     cfg.IMAPPort,
			Username: cfg.MailUser,
			Password: cfg.IMAPPassword,
			TLS:      cfg.IMAPTLS,
			Marker:   cfg.ProcessedMarker,
		})
		logger.Info("[MailGateway] using imap mailbox %s@%s:%d", cfg.MailUser, cfg.IMAPHost, cfg.IMAPPort)
		return gateway, nil

	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
}
