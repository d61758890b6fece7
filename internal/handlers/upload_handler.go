package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/shomere/ICR-Projects/internal/migrate"
)

const defaultMaxUpload = 5 << 20

var imageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// objectPath builds a readable, collision-free storage key such as
// "products/blue-glazed-mug-1b9d6bcd.jpg".
func objectPath(filename string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := imageTypes[ext]; !ok {
		return "", false
	}
	name := slug.Make(strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)))
	if name == "" {
		name = "image"
	}
	if len(name) > 60 {
		name = strings.TrimRight(name[:60], "-")
	}
	return fmt.Sprintf("products/%s-%s%s", name, uuid.NewString()[:8], ext), true
}

// UploadProductImage handles POST /v1/admin/uploads
// It stores the image in the product bucket and returns its public URL.
func (h *Handlers) UploadProductImage(c *gin.Context) {
	// 1. Get the file from the request
	limit := h.MaxUploadBytes
	if limit <= 0 {
		limit = defaultMaxUpload
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)

	tooLarge := gin.H{"error": fmt.Sprintf("File is larger than %d MB", limit>>20)}
	file, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			c.JSON(http.StatusRequestEntityTooLarge, tooLarge)
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}
	if file.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, tooLarge)
		return
	}

	// 2. Generate a safe unique object name (slug + short uuid + extension)
	path, ok := objectPath(file.Filename)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only JPEG, PNG, WebP and GIF images are accepted"})
		return
	}

	// 3. Upload to storage
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	defer src.Close()

	bucket := h.Bucket
	if bucket == "" {
		bucket = migrate.DefaultBucket
	}
	storage := h.clientFor(c).Storage()
	if _, err := storage.Upload(c.Request.Context(), bucket, path, imageTypes[filepath.Ext(path)], src); err != nil {
		h.respondError(c, err)
		return
	}

	// 4. Return the public URL
	c.JSON(http.StatusCreated, gin.H{
		"path": path,
		"url":  storage.PublicURL(bucket, path),
	})
}
