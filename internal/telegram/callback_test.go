package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/memohai/stowbot/internal/pipeline"
)

func TestParseCallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		data   string
		ok     bool
		want   callback
		choice pipeline.Choice
	}{
		{"download_file_ab12cd34", true, callback{action: actionFile, sessionID: "ab12cd34"}, pipeline.Choice{}},
		{"download_video_ab12cd34_137", true, callback{action: actionVideo, sessionID: "ab12cd34", formatID: "137"}, pipeline.Choice{FormatID: "137"}},
		{"download_video_ab12cd34_hls_1080p", true, callback{action: actionVideo, sessionID: "ab12cd34", formatID: "hls_1080p"}, pipeline.Choice{FormatID: "hls_1080p"}},
		{"download_audio_ab12cd34", true, callback{action: actionAudio, sessionID: "ab12cd34"}, pipeline.Choice{AudioOnly: true}},
		{"cancel_ab12cd34", true, callback{action: actionCancel, sessionID: "ab12cd34"}, pipeline.Choice{}},
		{"download_video_ab12cd34", false, callback{}, pipeline.Choice{}},
		{"download_file_", false, callback{}, pipeline.Choice{}},
		{"download_audio_a_b", false, callback{}, pipeline.Choice{}},
		{"something_else", false, callback{}, pipeline.Choice{}},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, ok := parseCallback(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.choice, got.choice())
		})
	}
}
