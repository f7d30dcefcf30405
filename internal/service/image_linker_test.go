package service

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/railmadad/complaint-api/internal/models"
	appErrors "github.com/railmadad/complaint-api/pkg/errors"
	"github.com/railmadad/complaint-api/pkg/storage"
)

func TestImageLinkerRoundTrip(t *testing.T) {
	links := NewImageLinker(storage.NewSignedURLSigner("secret", time.Hour), "/api/", nil)

	c := &models.Complaint{ComplaintID: "RM-20240301-ABC123", ImageFilename: "photo.png"}
	links.Decorate(c)
	require.True(t, strings.HasPrefix(c.ImageURL, "/api/complaint/RM-20240301-ABC123/image?token="))

	u, err := url.Parse(c.ImageURL)
	require.NoError(t, err)
	token := u.Query().Get("token")

	filename, err := links.Verify(c.ComplaintID, token)
	require.NoError(t, err)
	assert.Equal(t, "photo.png", filename)

	_, err = links.Verify("RM-20240301-OTHER1", token)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = links.Verify(c.ComplaintID, "")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	_, err = links.Verify(c.ComplaintID, token+"x")
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestImageLinkerSkipsComplaintsWithoutPhoto(t *testing.T) {
	links := NewImageLinker(storage.NewSignedURLSigner("secret", time.Hour), "/api", nil)
	list := []models.Complaint{{ComplaintID: "a"}, {ComplaintID: "b", ImageFilename: "b.jpg"}}
	links.DecorateAll(list)
	assert.Empty(t, list[0].ImageURL)
	assert.NotEmpty(t, list[1].ImageURL)

	var disabled *ImageLinker
	disabled.Decorate(&list[0])
	_, err := disabled.Verify("a", "t")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
