package s3store

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", endpointURL("  ", false))
	assert.Equal(t, "http://minio:9000", endpointURL("minio:9000", false))
	assert.Equal(t, "https://files.example.com", endpointURL("files.example.com/", true))
	assert.Equal(t, "https://s3.example.com", endpointURL("https://s3.example.com/", false))
}

func TestAttachmentDisposition(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `attachment; filename="clip.mp4"`, AttachmentDisposition("clip.mp4"))
	assert.Equal(t, `attachment; filename="my clip.mp4"`, AttachmentDisposition("my clip.mp4"))

	v := AttachmentDisposition("видео.mp4")
	assert.True(t, strings.HasPrefix(v, `attachment; filename="_____.mp4"`), v)
	assert.Contains(t, v, "filename*=UTF-8''"+url.PathEscape("видео.mp4"))
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NoSuchBucket"}))
	assert.True(t, isNotFound(&smithy.GenericAPIError{Code: "NotFound"}))
	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("dial tcp: refused")))
}

func TestPresignUsesExternalEndpoint(t *testing.T) {
	t.Parallel()

	store, err := New(context.Background(), nil, Config{
		Endpoint:         "minio:9000",
		ExternalEndpoint: "https://files.example.com",
		AccessKey:        "key",
		SecretKey:        "secret",
		Bucket:           "media",
		Prefix:           "/bot/",
		URLExpiry:        15 * time.Minute,
	})
	require.NoError(t, err)

	link, err := store.AccessURL(context.Background(), "files/abc/clip.mp4", "clip.mp4")
	require.NoError(t, err)

	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "files.example.com", u.Host)
	assert.Equal(t, "/media/bot/files/abc/clip.mp4", u.Path)
	q := u.Query()
	assert.Equal(t, "900", q.Get("X-Amz-Expires"))
	assert.Equal(t, `attachment; filename="clip.mp4"`, q.Get("response-content-disposition"))
}
