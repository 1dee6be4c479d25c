package utils

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestFileHeader creates a mock multipart.FileHeader for testing
func createTestFileHeader(filename string, size int64, content []byte) *multipart.FileHeader {
	// Create a buffer to write our multipart form
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	// Create form file
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	h.Set("Content-Type", "image/png")
	part, _ := writer.CreatePart(h)
	part.Write(content)
	writer.Close()

	// Parse the multipart form
	reader := multipart.NewReader(body, writer.Boundary())
	form, _ := reader.ReadForm(int64(len(content)) + 1024)
	defer form.RemoveAll()

	if len(form.File["file"]) > 0 {
		fileHeader := form.File["file"][0]
		// Override size for testing purposes
		fileHeader.Size = size
		return fileHeader
	}

	return nil
}

func TestValidateImageFile(t *testing.T) {
	content := []byte("fake image content")
	small := int64(len(content))

	tests := []struct {
		name        string
		filename    string
		size        int64
		wantCode    string
		wantMessage string
	}{
		{"png", "front.png", small, "", ""},
		{"jpg", "front.jpg", small, "", ""},
		{"jpeg", "front.jpeg", small, "", ""},
		{"webp", "front.webp", small, "", ""},
		{"uppercase extension", "FRONT.PNG", small, "", ""},
		{"exactly the limit", "front.png", MaxFileSize, "", ""},
		{"too large", "front.png", MaxFileSize + 1, "FILE_TOO_LARGE", "maximum allowed size of 10 MB"},
		{"gif", "front.gif", small, "INVALID_FILE_FORMAT", "Only .jpeg, .jpg, .png, .webp files are allowed"},
		{"no extension", "front", small, "INVALID_FILE_FORMAT", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fileHeader := createTestFileHeader(tt.filename, tt.size, content)
			require.NotNil(t, fileHeader)

			err := ValidateImageFile(fileHeader)

			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			var uploadErr *FileUploadError
			require.ErrorAs(t, err, &uploadErr)
			assert.Equal(t, tt.wantCode, uploadErr.Code)
			assert.Contains(t, uploadErr.Error(), tt.wantMessage)
		})
	}
}

func TestNewImageFilename(t *testing.T) {
	a, b := NewImageFilename("Brakes.JPEG"), NewImageFilename("Brakes.JPEG")

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasSuffix(a, ".jpeg"))
	assert.Len(t, a, 36+len(".jpeg"))
}

func TestContentType(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"front.png", "image/png"},
		{"front.JPG", "image/jpeg"},
		{"front.jpeg", "image/jpeg"},
		{"front.webp", "image/webp"},
		{"front.gif", ""},
		{"front", ""},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentType(tt.filename))
		})
	}
}

func TestSaveAndRemoveUploadedFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("fake png content")
	fileHeader := createTestFileHeader("Garage.PNG", int64(len(content)), content)
	require.NotNil(t, fileHeader)

	filename, err := SaveUploadedFile(fileHeader, dir)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(filename, ".png"), "extension should be kept and lowercased")
	assert.NotContains(t, filename, "Garage", "original name should not leak into storage")

	saved, err := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, err)
	assert.Equal(t, content, saved)

	require.NoError(t, RemoveUploadedFile(filename, dir))
	_, err = os.Stat(filepath.Join(dir, filename))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, RemoveUploadedFile(filename, dir), "removing twice is not an error")
}

func TestGetImageURL(t *testing.T) {
	assert.Equal(t, "", GetImageURL(""))
	assert.Equal(t, "/api/v1/uploads/abc.png", GetImageURL("abc.png"))
}
