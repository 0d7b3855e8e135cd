package domain

// PlatformKind identifies a supported video platform
type PlatformKind string

const (
	PlatformYouTube   PlatformKind = "youtube"
	PlatformInstagram PlatformKind = "instagram"
	PlatformTikTok    PlatformKind = "tiktok"
	PlatformFacebook  PlatformKind = "facebook"
)

// Platforms returns all supported platforms in classification order
func Platforms() []PlatformKind {
	return []PlatformKind{PlatformYouTube, PlatformInstagram, PlatformTikTok, PlatformFacebook}
}

// ValidatePlatform checks if a platform is valid
func ValidatePlatform(platform PlatformKind) bool {
	switch platform {
	case PlatformYouTube, PlatformInstagram, PlatformTikTok, PlatformFacebook:
		return true
	default:
		return false
	}
}

// Label returns the human-readable platform name used in chat messages
func (p PlatformKind) Label() string {
	switch p {
	case PlatformYouTube:
		return "YouTube"
	case PlatformInstagram:
		return "Instagram"
	case PlatformTikTok:
		return "TikTok"
	case PlatformFacebook:
		return "Facebook"
	default:
		return string(p)
	}
}
