package telegram

import (
	"strings"

	"github.com/memohai/stowbot/internal/pipeline"
)

const (
	callbackFile   = "download_file_"
	callbackVideo  = "download_video_"
	callbackAudio  = "download_audio_"
	callbackCancel = "cancel_"
)

type callbackAction int

const (
	actionFile callbackAction = iota + 1
	actionVideo
	actionAudio
	actionCancel
)

type callback struct {
	action    callbackAction
	sessionID string
	formatID  string
}

func (c callback) choice() pipeline.Choice {
	switch c.action {
	case actionAudio:
		return pipeline.Choice{AudioOnly: true}
	case actionVideo:
		return pipeline.Choice{FormatID: c.formatID}
	default:
		return pipeline.Choice{}
	}
}

// parseCallback decodes inline keyboard data. Session ids never contain "_",
// format ids may.
func parseCallback(data string) (callback, bool) {
	var cb callback
	switch {
	case strings.HasPrefix(data, callbackFile):
		cb = callback{action: actionFile, sessionID: strings.TrimPrefix(data, callbackFile)}
	case strings.HasPrefix(data, callbackAudio):
		cb = callback{action: actionAudio, sessionID: strings.TrimPrefix(data, callbackAudio)}
	case strings.HasPrefix(data, callbackCancel):
		cb = callback{action: actionCancel, sessionID: strings.TrimPrefix(data, callbackCancel)}
	case strings.HasPrefix(data, callbackVideo):
		id, format, ok := strings.Cut(strings.TrimPrefix(data, callbackVideo), "_")
		if !ok || format == "" {
			return callback{}, false
		}
		cb = callback{action: actionVideo, sessionID: id, formatID: format}
	default:
		return callback{}, false
	}
	if cb.sessionID == "" || strings.Contains(cb.sessionID, "_") {
		return callback{}, false
	}
	return cb, true
}
