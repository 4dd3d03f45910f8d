// Package drive stores attachments in Google Drive, one folder per
// generation date under a configured parent.
package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"ccm_server/core/domain"
	"ccm_server/core/port/out"
	"ccm_server/pkg/logger"
	"ccm_server/pkg/normalize"
)

const folderMimeType = "application/vnd.google-apps.folder"

// Store implements the drive port over the Drive v3 API. Every call goes
// through a circuit breaker so a Drive outage fails fast instead of hanging
// the ingestion cycle.
type Store struct {
	service *driveapi.Service
	cb      *gobreaker.CircuitBreaker
}

var _ out.DriveStore = (*Store)(nil)

type Options struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func NewStore(ctx context.Context, opts Options) (*Store, error) {
	conf := &oauth2.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{driveapi.DriveScope},
	}
	client := conf.Client(ctx, &oauth2.Token{RefreshToken: opts.RefreshToken})

	service, err := driveapi.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	cbSettings := gobreaker.Settings{
		Name:        "drive-api",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.ConsecutiveFailures > 5 ||
				(counts.Requests >= 10 && failureRatio >= 0.6)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("[CircuitBreaker] %s: state changed from %s to %s", name, from.String(), to.String())
		},
	}

	return &Store{
		service: service,
		cb:      gobreaker.NewCircuitBreaker(cbSettings),
	}, nil
}

func (s *Store) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	query := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escapeQuery(name), escapeQuery(parentID), folderMimeType)

	var folderID string
	err := s.execute(ctx, "EnsureFolder", func() error {
		list, err := s.service.Files.List().
			Q(query).
			Fields("files(id, name)").
			PageSize(1).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if len(list.Files) > 0 {
			folderID = list.Files[0].Id
			return nil
		}

		created, err := s.service.Files.Create(&driveapi.File{
			Name:     name,
			MimeType: folderMimeType,
			Parents:  []string{parentID},
		}).Fields("id").Context(ctx).Do()
		if err != nil {
			return err
		}
		folderID = created.Id
		logger.Info("[DriveStore.EnsureFolder] created folder %q under %s", name, parentID)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to ensure folder %q: %w", name, err)
	}
	return folderID, nil
}

func (s *Store) Upload(ctx context.Context, folderID, name string, data []byte, contentType string) (*domain.UploadedFile, error) {
	existing, err := s.ListFolderFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}
	taken := make(map[string]bool, len(existing))
	for _, f := range existing {
		taken[f.Name] = true
	}
	finalName := normalize.UniqueName(name, func(candidate string) bool { return taken[candidate] })

	var uploaded *domain.UploadedFile
	err = s.execute(ctx, "Upload", func() error {
		file, err := s.service.Files.Create(&driveapi.File{
			Name:    finalName,
			Parents: []string{folderID},
		}).
			Media(bytes.NewReader(data), googleapi.ContentType(contentType)).
			Fields("id, name, webViewLink, webContentLink").
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		uploaded = &domain.UploadedFile{
			ID:           file.Id,
			Name:         file.Name,
			ViewLink:     file.WebViewLink,
			DownloadLink: file.WebContentLink,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %q: %w", finalName, err)
	}

	logger.Info("[DriveStore.Upload] stored %q as %s", uploaded.Name, uploaded.ID)
	return uploaded, nil
}

func (s *Store) ListFolderFiles(ctx context.Context, folderID string) ([]out.DriveFile, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))

	var files []out.DriveFile
	err := s.execute(ctx, "ListFolderFiles", func() error {
		files = files[:0]
		pageToken := ""
		for {
			req := s.service.Files.List().
				Q(query).
				Fields("nextPageToken, files(id, name, size)").
				PageSize(100)
			if pageToken != "" {
				req = req.PageToken(pageToken)
			}
			list, err := req.Context(ctx).Do()
			if err != nil {
				return err
			}
			for _, f := range list.Files {
				files = append(files, out.DriveFile{ID: f.Id, Name: f.Name, Size: f.Size})
			}
			if list.NextPageToken == "" {
				return nil
			}
			pageToken = list.NextPageToken
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}
	return files, nil
}

func (s *Store) Download(ctx context.Context, fileID string) ([]byte, error) {
	var data []byte
	err := s.execute(ctx, "Download", func() error {
		resp, err := s.service.Files.Get(fileID).Context(ctx).Download()
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", fileID, err)
	}
	return data, nil
}

// execute wraps an API call with circuit breaker protection. Client errors
// (4xx except 429) do not trip the breaker.
func (s *Store) execute(_ context.Context, operation string, fn func() error) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		if err := fn(); err != nil {
			if apiErr, ok := err.(*googleapi.Error); ok {
				switch apiErr.Code {
				case 500, 502, 503, 429:
					return nil, err
				case 400, 401, 403, 404:
					return nil, &nonCircuitError{err: err}
				}
			}
			return nil, err
		}
		return nil, nil
	})

	if nce, ok := err.(*nonCircuitError); ok {
		return nce.err
	}
	if err != nil {
		logger.Error("[DriveStore] circuit breaker error for %s: state=%s, err=%v",
			operation, s.cb.State().String(), err)
	}
	return err
}

// nonCircuitError wraps errors that should not trip the circuit breaker.
type nonCircuitError struct {
	err error
}

func (e *nonCircuitError) Error() string {
	return e.err.Error()
}

// escapeQuery escapes single quotes for Drive query strings.
func escapeQuery(value string) string {
	return strings.ReplaceAll(value, "'", `\'`)
}
