package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"selfie-backend/internal/storage"
)

// archiveFloorBytes is a coarse truncation check: ten minimally sized images
// cannot produce an archive smaller than this.
const archiveFloorBytes = int64(MinTrainingImages) * 6 * 1024

type ArchiveResult struct {
	Success bool
	Errors  []StageError
	Archive *StorageReference
}

// ArchiveBuilder packages the validated images into a single ZIP and uploads
// it as one object. It works from the in-memory validated bytes, not the
// stored copies.
type ArchiveBuilder struct {
	store storage.ObjectStore
}

func NewArchiveBuilder(store storage.ObjectStore) *ArchiveBuilder {
	return &ArchiveBuilder{store: store}
}

func (b *ArchiveBuilder) Build(ctx context.Context, userId string, images []ValidatedImage) ArchiveResult {
	result := ArchiveResult{}

	if len(images) < MinTrainingImages {
		result.Errors = append(result.Errors, inputErrorf("cannot build archive from %d images, at least %d are required", len(images), MinTrainingImages))
		return result
	}

	tempDir, err := os.MkdirTemp("", "training-archive-")
	if err != nil {
		result.Errors = append(result.Errors, externalError("failed to create temp directory for archive", err))
		return result
	}
	defer func() {
		// Best-effort cleanup; the durable copy is what matters.
		if err := os.RemoveAll(tempDir); err != nil {
			slog.Warn("failed to remove temp archive directory", "dir", tempDir, "error", err)
		}
	}()

	zipPath := filepath.Join(tempDir, fmt.Sprintf("training_%s_%d.zip", userId, time.Now().UnixMilli()))

	appendErrors, err := writeArchive(zipPath, images)
	result.Errors = append(result.Errors, appendErrors...)
	if err != nil {
		result.Errors = append(result.Errors, externalError("failed to finalize archive", err))
		return result
	}

	info, err := os.Stat(zipPath)
	if err != nil {
		result.Errors = append(result.Errors, externalError("failed to stat finished archive", err))
		return result
	}
	if info.Size() < archiveFloorBytes {
		result.Errors = append(result.Errors, verificationErrorf("archive is %d bytes, below the %d byte floor for %d images; refusing to train on a truncated archive", info.Size(), archiveFloorBytes, MinTrainingImages))
		return result
	}

	// Reconcile how many members actually made it in. An archive missing any
	// input image is never shipped.
	appended := len(images) - countItemErrors(appendErrors)
	if appended != len(images) {
		result.Errors = append(result.Errors, verificationErrorf("archive contains %d of %d images; archives are never partially built", appended, len(images)))
		return result
	}

	file, err := os.Open(zipPath)
	if err != nil {
		result.Errors = append(result.Errors, externalError("failed to reopen finished archive", err))
		return result
	}
	defer file.Close()

	key := fmt.Sprintf("user-%s/%s", userId, filepath.Base(zipPath))
	if err := b.store.PutObject(ctx, key, file); err != nil {
		result.Errors = append(result.Errors, externalError("failed to upload training archive", err))
		return result
	}

	slog.Info("training archive uploaded", "user_id", userId, "key", key, "size", info.Size(), "images", appended)

	result.Archive = &StorageReference{Key: key, URL: b.store.ObjectURL(key)}
	result.Success = true
	return result
}

// writeArchive builds the ZIP on disk. Per-member failures are recorded and
// skipped; only creating or closing the archive itself is fatal.
func writeArchive(zipPath string, images []ValidatedImage) ([]StageError, error) {
	file, err := os.Create(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer file.Close()

	writer := zip.NewWriter(file)

	var appendErrors []StageError
	for _, image := range images {
		member, err := writer.Create(fmt.Sprintf("image_%d.jpg", image.Index+1))
		if err != nil {
			appendErrors = append(appendErrors, itemError(image.Index, "failed to add to archive", err))
			continue
		}
		if _, err := member.Write(image.Data); err != nil {
			appendErrors = append(appendErrors, itemError(image.Index, "failed to write into archive", err))
			continue
		}
	}

	if err := writer.Close(); err != nil {
		return appendErrors, fmt.Errorf("failed to close archive writer: %w", err)
	}
	if err := file.Sync(); err != nil {
		return appendErrors, fmt.Errorf("failed to sync archive file: %w", err)
	}

	return appendErrors, nil
}
