// Package gdrive mirrors saved recordings and their metadata files into a
// Google Drive folder.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Archiver uploads files by base name. A name uploaded once is updated in
// place on later calls.
type Archiver struct {
	service  *drive.Service
	folderID string
	logger   *slog.Logger

	mu      sync.Mutex
	fileIDs map[string]string
}

// NewArchiver builds a Drive client from a service account key file. An
// empty credPath leaves authentication to opts.
func NewArchiver(ctx context.Context, credPath, folderID string, logger *slog.Logger, opts ...option.ClientOption) (*Archiver, error) {
	if folderID == "" {
		return nil, errors.New("gdrive: folder id is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	if credPath != "" {
		creds, err := os.ReadFile(credPath)
		if err != nil {
			return nil, fmt.Errorf("read credentials: %w", err)
		}

		config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
		if err != nil {
			return nil, fmt.Errorf("parse credentials: %w", err)
		}
		opts = append([]option.ClientOption{option.WithCredentials(config)}, opts...)
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return &Archiver{
		service:  svc,
		folderID: folderID,
		logger:   logger.With(slog.String("component", "gdrive")),
		fileIDs:  make(map[string]string),
	}, nil
}

func (a *Archiver) Archive(ctx context.Context, localPath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	name := filepath.Base(localPath)

	if fileID, ok := a.fileIDs[name]; ok {
		_, err = a.service.Files.Update(fileID, &drive.File{}).Media(f).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("drive update %s: %w", name, err)
		}
		a.logger.Debug("archive updated", "name", name, "file_id", fileID)
		return nil
	}

	doc, err := a.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: mimeType(name),
		Parents:  []string{a.folderID},
	}).Media(f).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("drive create %s: %w", name, err)
	}

	a.fileIDs[name] = doc.Id
	a.logger.Debug("archive created", "name", name, "file_id", doc.Id)
	return nil
}

func mimeType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav":
		return "audio/wav"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
