package controllers

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/autofix-app/autofix-api/utils"
	"github.com/gin-gonic/gin"
)

// GetUploadedImage handles GET /api/v1/uploads/:filename - serves workshop photos
// kept on local disk when S3 is not configured
func GetUploadedImage(c *gin.Context) {
	filename := c.Param("filename")
	if filename == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Filename is required")
		return
	}

	// no path components may leave the upload directory
	if strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		respondError(c, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename")
		return
	}

	contentType := utils.ContentType(filename)
	if contentType == "" {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE",
			"Only "+strings.Join(utils.AllowedExtensions(), ", ")+" files are supported")
		return
	}

	filePath := filepath.Join(utils.UploadDir, filename)
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		respondError(c, http.StatusNotFound, "FILE_NOT_FOUND", "Image not found")
		return
	}

	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "public, max-age=86400")
	c.File(filePath)
}
