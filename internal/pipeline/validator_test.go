package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmptyBatch(t *testing.T) {
	result := NewImageValidator().Validate(nil)

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrorKindInput, result.Errors[0].Kind)
	assert.Nil(t, result.ValidImages)
}

func TestValidateTooFewImages(t *testing.T) {
	result := NewImageValidator().Validate(makeImages(9, 50*1024))

	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrorKindInput, result.Errors[0].Kind)
	assert.Contains(t, result.Errors[0].Message, "at least 10")
}

func TestValidateBelowRecommendedCountWarns(t *testing.T) {
	result := NewImageValidator().Validate(makeImages(12, 50*1024))

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "12 images")
	assert.Len(t, result.ValidImages, 12)
}

func TestValidateRecommendedCountNoWarning(t *testing.T) {
	result := NewImageValidator().Validate(makeImages(15, 50*1024))

	assert.True(t, result.Success)
	assert.Empty(t, result.Warnings)
	assert.Len(t, result.ValidImages, 15)
}

func TestValidateRejectsMissingDataMarker(t *testing.T) {
	images := makeImages(15, 50*1024)
	images[3] = "not-an-image"

	result := NewImageValidator().Validate(images)

	assert.True(t, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, ErrorKindItem, result.Errors[0].Kind)
	assert.Contains(t, result.Errors[0].Message, "image 4")
	assert.Len(t, result.ValidImages, 14)
}

func TestValidateRepairsStrippedPadding(t *testing.T) {
	image := makeImage(50 * 1024)
	require.True(t, strings.HasSuffix(image, "="))
	trimmed := strings.TrimRight(image, "=")

	images := makeImages(14, 50*1024)
	images = append(images, trimmed)

	result := NewImageValidator().Validate(images)

	assert.True(t, result.Success)
	assert.Empty(t, result.Errors)
	assert.Len(t, result.ValidImages, 15)
}

func TestValidateSizeGates(t *testing.T) {
	images := makeImages(13, 50*1024)
	// One below the 10KB floor, one above the 10MB ceiling.
	images = append(images, makeImage(5*1024))
	images = append(images, makeImage(11*1024*1024))

	result := NewImageValidator().Validate(images)

	assert.True(t, result.Success)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0].Message, "too small")
	assert.Contains(t, result.Errors[1].Message, "too large")
	assert.Len(t, result.ValidImages, 13)
}

func TestValidateFailsWhenFilteringDropsBelowFloor(t *testing.T) {
	// 12 submitted, 3 corrupt: 9 survivors is under the floor.
	images := makeImages(9, 50*1024)
	images = append(images, "garbage", "data:image/jpeg;base64,!!!", "also-garbage")

	result := NewImageValidator().Validate(images)

	assert.False(t, result.Success)
	assert.Nil(t, result.ValidImages)
	assert.Equal(t, 3, countItemErrors(result.Errors))

	last := result.Errors[len(result.Errors)-1]
	assert.Equal(t, ErrorKindInput, last.Kind)
	assert.Contains(t, last.Message, "9 valid images")
}

func TestValidatedImagesKeepOriginalIndices(t *testing.T) {
	images := makeImages(15, 50*1024)
	images[0] = "broken"

	result := NewImageValidator().Validate(images)

	require.True(t, result.Success)
	require.Len(t, result.ValidImages, 14)
	assert.Equal(t, 1, result.ValidImages[0].Index)
	assert.Equal(t, 14, result.ValidImages[13].Index)
}
