package app

import (
	"fmt"

	"github.com/yourusername/vidrelay/internal/domain"
)

// OutboundPlan describes what to send back to the conversation for a
// finished download attempt. Failures are text-only; successes carry a
// file attachment plus caption.
type OutboundPlan struct {
	Text     string
	FilePath string
	Caption  string
}

// IsFile reports whether the plan carries a file attachment
func (p OutboundPlan) IsFile() bool {
	return p.FilePath != ""
}

// Render maps a download result to an outbound message plan. Pure and
// idempotent; transmission is the gateway's job.
func Render(result domain.DownloadResult) OutboundPlan {
	if result.Succeeded() {
		caption := fmt.Sprintf("🎥 %s\n\n📱 Platform: %s", result.Title, result.Platform.Label())
		if result.DurationSecs > 0 {
			caption += fmt.Sprintf("\n⏱️ Duration: %ds", result.DurationSecs)
		}
		caption += fmt.Sprintf("\n📊 Size: %.1fMB", float64(result.SizeBytes)/(1024*1024))

		return OutboundPlan{
			FilePath: result.FilePath,
			Caption:  caption,
		}
	}

	return OutboundPlan{Text: failureText(result)}
}

// failureText turns a failure category into a short, platform-neutral
// user message. Raw tool diagnostics stay in the logs.
func failureText(result domain.DownloadResult) string {
	switch result.Failure.Kind {
	case domain.FailUnsupportedURL:
		return "❌ This link isn't supported. Send a video link from YouTube, Instagram, TikTok or Facebook."
	case domain.FailPrivateOrRestricted:
		return "❌ Could not download this video. It may be private, geo-restricted, or only available to registered users."
	case domain.FailTooLarge:
		if result.SizeBytes > 0 {
			return fmt.Sprintf("❌ Video file is too large to send. Video size: %.1fMB", float64(result.SizeBytes)/(1024*1024))
		}
		return "❌ Video file is too large to send."
	case domain.FailTimeout:
		return "❌ The download took too long and was cancelled. Please try again later."
	case domain.FailToolUnavailable:
		return "❌ The downloader is temporarily unavailable. Please try again later."
	case domain.FailNetworkError:
		return "❌ A network error occurred while downloading. Please try again later."
	default:
		return "❌ Failed to download video. The video might be private, too large, or not supported."
	}
}
