package out

import (
	"context"

	"ccm_server/core/domain"
)

// DriveFile is one entry of a folder listing.
type DriveFile struct {
	ID   string
	Name string
	Size int64
}

// DriveStore abstracts the object store holding per-generation folders.
type DriveStore interface {
	// EnsureFolder searches parentID for a folder with the exact name and
	// creates it if absent. Concurrent calls converge to the same id.
	EnsureFolder(ctx context.Context, parentID, name string) (string, error)

	// Upload stores a blob under folderID, resolving name collisions before
	// writing, and returns the stored identifiers and links.
	Upload(ctx context.Context, folderID, name string, data []byte, contentType string) (*domain.UploadedFile, error)

	// ListFolderFiles returns the files directly under folderID. Provider
	// order; callers sort when they need determinism.
	ListFolderFiles(ctx context.Context, folderID string) ([]DriveFile, error)

	// Download returns the full content of a file.
	Download(ctx context.Context, fileID string) ([]byte, error)
}
