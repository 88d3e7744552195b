package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"video.mp4", "video.mp4"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\report.pdf`, "report.pdf"},
		{"what?#now%.txt", "what__now_.txt"},
		{"tab\there", "tabhere"},
		{"   ", "file"},
		{"..", "file"},
		{"", "file"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), tt.in)
	}
}

func TestSanitizeNameTruncatesKeepingExtension(t *testing.T) {
	t.Parallel()

	got := SanitizeName(strings.Repeat("a", 300) + ".mp4")
	assert.Len(t, got, 200)
	assert.True(t, strings.HasSuffix(got, ".mp4"))
}

func TestNewKey(t *testing.T) {
	t.Parallel()

	key := NewKey("My Clip.mp4")
	parts := strings.Split(key, "/")
	assert.Len(t, parts, 3)
	assert.Equal(t, "files", parts[0])
	assert.Len(t, parts[1], 36)
	assert.Equal(t, "My Clip.mp4", parts[2])
	assert.NotEqual(t, key, NewKey("My Clip.mp4"))
}
