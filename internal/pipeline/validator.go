package pipeline

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
)

const (
	// MinTrainingImages is a hard floor; the remote trainer produces unusable
	// models below it.
	MinTrainingImages = 10

	// RecommendedImages is advisory only; between the floor and this count
	// the batch is accepted with a quality warning.
	RecommendedImages = 15

	minImageBytes = 10 * 1024
	maxImageBytes = 10 * 1024 * 1024
)

var dataURIPrefix = regexp.MustCompile(`^data:image/[a-z]+;base64,`)

// ValidatedImage is a decoded image that passed all format and size gates.
// It lives only for the duration of one pipeline run.
type ValidatedImage struct {
	Index int
	Data  []byte
}

type ValidationResult struct {
	Success     bool
	Errors      []StageError
	Warnings    []string
	ValidImages []ValidatedImage
}

// ImageValidator enforces the structural and quantity gates on a raw batch.
// It is a pure function over its input; all errors are accumulated, never
// thrown.
type ImageValidator struct{}

func NewImageValidator() *ImageValidator {
	return &ImageValidator{}
}

func (v *ImageValidator) Validate(images []string) ValidationResult {
	result := ValidationResult{}

	if len(images) == 0 {
		result.Errors = append(result.Errors, inputErrorf("no images provided, at least %d selfies are required", MinTrainingImages))
		return result
	}

	if len(images) < MinTrainingImages {
		result.Errors = append(result.Errors, inputErrorf("only %d images provided, at least %d selfies are required for training", len(images), MinTrainingImages))
		return result
	}

	if len(images) < RecommendedImages {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d images provided; %d-20 are recommended for best quality", len(images), RecommendedImages))
	}

	for i, image := range images {
		data, err := decodeImage(image)
		if err != nil {
			result.Errors = append(result.Errors, itemError(i, "corrupted or invalid image file", err))
			continue
		}

		if len(data) < minImageBytes {
			result.Errors = append(result.Errors, itemError(i, "file too small, likely corrupt; use higher quality photos", nil))
			continue
		}

		if len(data) > maxImageBytes {
			result.Errors = append(result.Errors, itemError(i, "file too large, maximum 10MB per image", nil))
			continue
		}

		result.ValidImages = append(result.ValidImages, ValidatedImage{Index: i, Data: data})
	}

	// The batch can fall below the floor after per-image filtering even
	// though the submitted count passed.
	if len(result.ValidImages) < MinTrainingImages {
		result.Errors = append(result.Errors, inputErrorf("only %d valid images after filtering, at least %d are required", len(result.ValidImages), MinTrainingImages))
		result.ValidImages = nil
		return result
	}

	result.Success = true
	return result
}

func decodeImage(image string) ([]byte, error) {
	if !strings.Contains(image, "data:image/") {
		return nil, fmt.Errorf("missing image data marker")
	}

	payload := dataURIPrefix.ReplaceAllString(image, "")

	// Clients occasionally strip base64 padding; restore it before decoding.
	if rem := len(payload) % 4; rem != 0 {
		payload += strings.Repeat("=", 4-rem)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}

	return data, nil
}
