package service

import (
	"context"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stepwise-app/stepwise/internal/model"
	"github.com/stepwise-app/stepwise/internal/repository"
	"github.com/stepwise-app/stepwise/internal/storage"
)

type FileService struct {
	fileRepo repository.FileRepository
	storage  storage.Storage
	now      func() time.Time
}

func NewFileService(fileRepo repository.FileRepository, storage storage.Storage) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		storage:  storage,
		now:      time.Now,
	}
}

// Upload stores an already validated file and records it. On a failed insert
// the stored object is removed again.
func (s *FileService) Upload(ctx context.Context, userID, ownerType, ownerID, fileType, mimeType string, header *multipart.FileHeader) (*model.File, error) {
	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer func() { _ = src.Close() }()

	filename := uuid.NewString() + strings.ToLower(filepath.Ext(header.Filename))
	storagePath := path.Join("private", fileType+"s", userID, filename)

	err = s.storage.Save(ctx, storagePath, src, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	file := &model.File{
		ID:           uuid.NewString(),
		UserID:       userID,
		OwnerType:    ownerType,
		OwnerID:      ownerID,
		Type:         fileType,
		Filename:     filename,
		OriginalName: header.Filename,
		MimeType:     mimeType,
		Size:         header.Size,
		StoragePath:  storagePath,
		CreatedAt:    s.now().UTC(),
	}

	err = s.fileRepo.Create(ctx, file)
	if err != nil {
		if delErr := s.storage.Delete(ctx, storagePath); delErr != nil {
			slog.Error("failed to delete file from storage during cleanup", "error", delErr, "path", storagePath)
		}
		return nil, fmt.Errorf("failed to create file record: %w", err)
	}

	return file, nil
}

// URL returns a temporary URL for a stored object, or "" if none can be made.
func (s *FileService) URL(ctx context.Context, storagePath string) string {
	url, err := s.storage.URL(ctx, storagePath)
	if err != nil {
		slog.Warn("failed to presign file url", "error", err, "path", storagePath)
		return ""
	}
	return url
}

// Delete removes a file from storage (best effort) and from the database.
func (s *FileService) Delete(ctx context.Context, file *model.File) error {
	if err := s.storage.Delete(ctx, file.StoragePath); err != nil {
		slog.Error("failed to delete file from storage", "error", err, "path", file.StoragePath)
	}

	err := s.fileRepo.Delete(ctx, file.ID)
	if err != nil {
		return fmt.Errorf("failed to delete file record: %w", err)
	}
	return nil
}

// DeleteAllUserFilesFromStorage removes every stored object for a user. The
// rows themselves go with the user's cascade delete.
func (s *FileService) DeleteAllUserFilesFromStorage(ctx context.Context, userID string) error {
	files, err := s.fileRepo.AllUserFiles(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to get user files: %w", err)
	}

	for _, file := range files {
		err = s.storage.Delete(ctx, file.StoragePath)
		if err != nil {
			slog.Warn("failed to delete file from storage", "storage_path", file.StoragePath, "error", err)
		}
	}
	return nil
}
