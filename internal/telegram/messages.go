package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/stowbot/internal/finalize"
	"github.com/memohai/stowbot/internal/formats"
	"github.com/memohai/stowbot/internal/pipeline"
	"github.com/memohai/stowbot/internal/transfer"
	"github.com/memohai/stowbot/internal/users"
)

// Telegram rejects callback data longer than this.
const maxCallbackData = 64

const (
	startText = "👋 <b>Welcome!</b>\n\n" +
		"Send me a file or a video link and I will store it and give you a download link.\n\n" +
		"Use /help to see what I can do."

	helpText = "<b>How to use this bot</b>\n\n" +
		"📄 <b>Files:</b> send any document and confirm the download.\n" +
		"🎬 <b>Videos:</b> send a link, then pick a quality or audio only.\n\n" +
		"<b>Commands</b>\n" +
		"/quota - show your remaining daily quota\n" +
		"/premium - ask the administrators for premium access\n" +
		"/help - show this message"
)

func escape(s string) string {
	return html.EscapeString(s)
}

// formatMB renders bytes as megabytes with two decimals.
func formatMB(b int64) string {
	return fmt.Sprintf("%.2fMB", float64(b)/(1<<20))
}

func formatDuration(seconds float64) string {
	s := int(seconds)
	switch {
	case s <= 0:
		return "unknown"
	case s < 60:
		return fmt.Sprintf("%ds", s)
	case s < 3600:
		return fmt.Sprintf("%dm %ds", s/60, s%60)
	default:
		return fmt.Sprintf("%dh %dm", s/3600, (s%3600)/60)
	}
}

func quotaText(identity users.Identity, ceiling int64) string {
	class := "regular"
	if identity.IsPrivileged {
		class = "premium ⭐"
	}
	return fmt.Sprintf("🗃️ <b>Remaining quota:</b> %s\n📅 <b>Daily quota:</b> %s\n📦 <b>Max file size:</b> %s\n👤 <b>Account:</b> %s",
		formatMB(identity.RemainingQuotaBytes), formatMB(identity.MaxDailyQuotaBytes), formatMB(ceiling), class)
}

func directOfferText(src transfer.DirectSource, identity users.Identity) string {
	return fmt.Sprintf("<b>📄 File:</b> %s\n<b>📦 Size:</b> %s\n<b>🗃️ Remaining Quota:</b> %s\n\nDo you want to download this file?",
		escape(src.DisplayName()), formatMB(src.Size), formatMB(identity.RemainingQuotaBytes))
}

func directOfferKeyboard(sessionID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Download File", callbackFile+sessionID)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", callbackCancel+sessionID)),
	)
}

func remoteOfferText(src transfer.RemoteSource, identity users.Identity) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 <b>%s</b>\n", escape(src.DisplayName()))
	if src.Uploader != "" {
		fmt.Fprintf(&b, "👤 <b>Channel:</b> %s\n", escape(src.Uploader))
	}
	fmt.Fprintf(&b, "⏱️ <b>Duration:</b> %s\n", formatDuration(src.Duration))
	fmt.Fprintf(&b, "🗃️ <b>Your Quota:</b> %s\n\n", formatMB(identity.RemainingQuotaBytes))
	b.WriteString("Choose a quality:")
	return b.String()
}

func remoteOfferKeyboard(sessionID string, sel formats.Selection) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(sel.Video)+2)
	for _, tier := range sel.Video {
		data := callbackVideo + sessionID + "_" + tier.ID()
		if len(data) > maxCallbackData {
			continue
		}
		label := "📹 " + tier.Label
		if size := tier.Candidate.EstimatedSize; size > 0 {
			label += fmt.Sprintf(" (~%.0fMB)", float64(size)/(1<<20))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, data)))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🎵 "+sel.Audio.Label, callbackAudio+sessionID)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", callbackCancel+sessionID)),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func progressText(name string, ev pipeline.Event) string {
	switch ev.State {
	case pipeline.StateStaging:
		if ev.Steps > 1 {
			return fmt.Sprintf("📥 <b>Downloading:</b> %s\n🔁 Attempt %d of %d", escape(name), ev.Step, ev.Steps)
		}
		return fmt.Sprintf("📥 <b>Downloading:</b> %s", escape(name))
	case pipeline.StateValidated:
		return fmt.Sprintf("☁️ <b>Uploading:</b> %s", escape(name))
	default:
		return ""
	}
}

func outcomeText(out finalize.Outcome) string {
	expiry := ""
	if out.LinkExpiry > 0 {
		expiry = fmt.Sprintf("\n⏳ Link valid for %s", out.LinkExpiry.Round(time.Minute))
	}
	return fmt.Sprintf("✅ <b>%s</b> downloaded successfully!\n📦 <b>Size:</b> %s\n🗃️ <b>Remaining Quota:</b> %s\n\n<a href=\"%s\">🔗 Download Link</a>%s",
		escape(out.Artifact.Name), formatMB(out.Artifact.SizeBytes), formatMB(out.RemainingQuotaBytes), escape(out.URL), expiry)
}

func failureText(f finalize.Failure) string {
	switch f.Kind {
	case transfer.KindRateLimited:
		return "⏳ <b>Too many requests.</b>\n\nPlease wait a minute before sending another one."
	case transfer.KindBusy:
		return "🚦 <b>The bot is busy.</b>\n\nToo many downloads are running right now. Please try again in a few minutes."
	case transfer.KindSizeExceeded:
		if f.Limit == transfer.LimitCeiling {
			return fmt.Sprintf("⚠️ <b>File is too large.</b>\n<b>File size:</b> %s\n<b>Maximum allowed:</b> %s",
				formatMB(f.Size), formatMB(f.LimitBytes))
		}
		return fmt.Sprintf("⚠️ <b>File size exceeds your remaining download limit.</b>\n<b>File size:</b> %s\n<b>Remaining quota:</b> %s\n\nUse /premium to request a larger quota.",
			formatMB(f.Size), formatMB(f.RemainingQuotaBytes))
	case transfer.KindExtractionFailed:
		if f.BotDetected {
			return "❌ <b>Failed to analyze video</b>\n\nThe site is blocking automated access right now. Please try again later or use another link."
		}
		return "❌ <b>Failed to analyze video</b>\n\nThe link is not supported or has no downloadable formats."
	case transfer.KindTransferFailed:
		switch {
		case f.BotDetected:
			return "❌ <b>Download failed</b>\n\nThe site is blocking automated downloads right now. Please try again later."
		case f.TimedOut:
			return "❌ <b>Download timed out</b>\n\nThe file took too long to download."
		}
		return "❌ <b>Download failed</b>\n\nAll download options were tried without success."
	case transfer.KindTempResourceFailed:
		return "❌ <b>Temporary storage error.</b> Please try again."
	default:
		return "❌ <b>Failed to complete the download.</b> Please try again later."
	}
}

func premiumRequestText(identity users.Identity, now time.Time) string {
	username := "None"
	if identity.Username != "" {
		username = "@" + identity.Username
	}
	name := strings.TrimSpace(identity.FirstName + " " + identity.LastName)
	if name == "" {
		name = "Unknown"
	}
	return fmt.Sprintf("🔔 <b>New Premium Request</b>\n\n👤 <b>User:</b> %s\n🆔 <b>User ID:</b> <code>%s</code>\n📱 <b>Username:</b> %s\n📅 <b>Request Date:</b> %s",
		escape(name), escape(identity.Key), escape(username), now.UTC().Format("2006-01-02 15:04:05"))
}

func privilegeChangedText(identity users.Identity) string {
	if identity.IsPrivileged {
		return fmt.Sprintf("⭐ <b>Premium access activated!</b>\n\nYour daily quota is now %s.", formatMB(identity.MaxDailyQuotaBytes))
	}
	return fmt.Sprintf("ℹ️ Your premium access has ended. Your daily quota is now %s.", formatMB(identity.MaxDailyQuotaBytes))
}
