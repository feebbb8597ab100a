package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"selfie-backend/internal/storage"
)

// StorageReference points at one durably stored object. Immutable once
// produced; never reused across pipeline runs.
type StorageReference struct {
	Key string
	URL string
}

type UploadResult struct {
	Success    bool
	Errors     []StageError
	References []StorageReference
}

// ImageUploader persists each validated image to the configured object store
// under a per-user prefix, verifying every write. Unlike validation, a single
// failed image does not abort the batch; the aggregate gate decides.
type ImageUploader struct {
	store storage.ObjectStore
}

func NewImageUploader(store storage.ObjectStore) *ImageUploader {
	return &ImageUploader{store: store}
}

func (u *ImageUploader) Upload(ctx context.Context, userId string, images []ValidatedImage) UploadResult {
	result := UploadResult{}

	if u.store == nil || u.store.Bucket() == "" {
		result.Errors = append(result.Errors, configErrorf("no training storage bucket configured"))
		return result
	}

	for _, image := range images {
		key := fmt.Sprintf("user-%s/training-image-%d-%d.jpg", userId, image.Index+1, time.Now().UnixMilli())

		if err := u.store.PutObject(ctx, key, bytes.NewReader(image.Data)); err != nil {
			slog.Error("failed to upload training image", "user_id", userId, "key", key, "error", err)
			result.Errors = append(result.Errors, itemError(image.Index, "failed to upload to storage", err))
			continue
		}

		// The write reported success; confirm the object is actually there
		// before counting it.
		exists, err := u.store.ObjectExists(ctx, key)
		if err != nil || !exists {
			slog.Error("uploaded training image missing on read-back", "user_id", userId, "key", key, "error", err)
			result.Errors = append(result.Errors, itemError(image.Index, "upload could not be verified", err))
			continue
		}

		result.References = append(result.References, StorageReference{Key: key, URL: u.store.ObjectURL(key)})
	}

	if len(result.References) < MinTrainingImages {
		result.Errors = append(result.Errors, inputErrorf("only %d of %d images stored durably, at least %d are required", len(result.References), len(images), MinTrainingImages))
		return result
	}

	result.Success = true
	return result
}
