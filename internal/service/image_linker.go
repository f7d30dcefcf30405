package service

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/railmadad/complaint-api/internal/models"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
)

type imageURLSigner interface {
	Generate(resourceID, filename string) (string, time.Time, error)
	Parse(token string) (resourceID, filename string, err error)
}

// ImageLinker attaches short-lived signed download URLs to complaint photos.
type ImageLinker struct {
	signer    imageURLSigner
	apiPrefix string
	logger    *zap.Logger
}

// NewImageLinker constructs an ImageLinker. A nil signer disables image URLs.
func NewImageLinker(signer imageURLSigner, apiPrefix string, logger *zap.Logger) *ImageLinker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageLinker{signer: signer, apiPrefix: strings.TrimRight(apiPrefix, "/"), logger: logger}
}

// Decorate sets ImageURL on a complaint that has a stored photo.
func (l *ImageLinker) Decorate(c *models.Complaint) {
	if l == nil || l.signer == nil || c == nil || c.ImageFilename == "" {
		return
	}
	token, _, err := l.signer.Generate(c.ComplaintID, c.ImageFilename)
	if err != nil {
		l.logger.Warn("failed to sign image url", zap.String("complaint_id", c.ComplaintID), zap.Error(err))
		return
	}
	c.ImageURL = fmt.Sprintf("%s/complaint/%s/image?token=%s", l.apiPrefix, url.PathEscape(c.ComplaintID), url.QueryEscape(token))
}

// DecorateAll applies Decorate to every complaint in place.
func (l *ImageLinker) DecorateAll(list []models.Complaint) {
	for i := range list {
		l.Decorate(&list[i])
	}
}

// Verify checks the token and returns the file name it grants access to.
func (l *ImageLinker) Verify(complaintID, token string) (string, error) {
	if l == nil || l.signer == nil {
		return "", appErrors.Clone(appErrors.ErrNotFound, "image links disabled")
	}
	if token == "" {
		return "", appErrors.Clone(appErrors.ErrUnauthorized, "image token required")
	}
	resourceID, filename, err := l.signer.Parse(token)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid image token")
	}
	if resourceID != complaintID {
		return "", appErrors.Clone(appErrors.ErrForbidden, "image token does not match complaint")
	}
	return filename, nil
}
