package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/railmadad/complaint-api/internal/middleware"
	"github.com/railmadad/complaint-api/internal/models"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// multipartOverhead is the allowance for form fields and part headers on top
// of the file bytes of a multipart request.
const multipartOverhead = 1 << 20

// limitBody caps the request body before multipart parsing so oversized
// uploads are rejected while streaming instead of being spooled to disk.
func limitBody(c *gin.Context, maxFileBytes int64, files int) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxFileBytes*int64(files)+multipartOverhead)
}

// uploadedFile is a multipart part read fully into memory.
type uploadedFile struct {
	Filename string
	Size     int64
	Data     []byte
}

// readFormFile returns the first present multipart file among fields. A nil
// result with a nil error means none of the fields were sent. At most
// maxBytes+1 bytes are read so oversize uploads remain detectable.
func readFormFile(c *gin.Context, maxBytes int64, fields ...string) (*uploadedFile, error) {
	for _, field := range fields {
		header, err := c.FormFile(field)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, appErrors.Wrap(err, appErrors.ErrPayloadTooLarge.Code, appErrors.ErrPayloadTooLarge.Status, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid multipart payload")
		}
		f, err := header.Open()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("cannot read %s", field))
		}
		data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		_ = f.Close()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("cannot read %s", field))
		}
		return &uploadedFile{Filename: header.Filename, Size: header.Size, Data: data}, nil
	}
	return nil, nil
}

// firstForm returns the first non-empty form value among the given aliases.
func firstForm(c *gin.Context, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(c.PostForm(key)); v != "" {
			return v
		}
	}
	return ""
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, key+" must be an integer")
	}
	return v, nil
}
