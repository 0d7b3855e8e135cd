package domain

// FailureKind is the closed set of user-facing download failure categories
type FailureKind string

const (
	FailUnsupportedURL      FailureKind = "unsupported_url"
	FailPrivateOrRestricted FailureKind = "private_or_restricted"
	FailTooLarge            FailureKind = "too_large"
	FailTimeout             FailureKind = "timeout"
	FailToolUnavailable     FailureKind = "tool_unavailable"
	FailNetworkError        FailureKind = "network_error"
	FailUnknown             FailureKind = "unknown"
)

// ToolOptions is the per-platform option set handed to the extraction tool
type ToolOptions struct {
	// FormatChain is tried in order by the tool; every selector already
	// encodes the byte ceiling.
	FormatChain   []string
	ExtractorArgs []string
	UserAgent     string
}

// DownloadRequest carries everything one tool invocation needs. Built by
// the orchestrator right before invoking the tool; never persisted.
type DownloadRequest struct {
	ID       string
	Link     DetectedLink
	DestDir  string
	MaxBytes int64
	Options  ToolOptions
}

// FailureDetail pairs a failure category with the original diagnostic.
// Detail is for logging only and must never be shown verbatim to users.
type FailureDetail struct {
	Kind   FailureKind
	Detail string
}

// DownloadResult is the outcome of one download attempt: either a local
// file with metadata, or a typed failure. Failure == nil means success.
type DownloadResult struct {
	Platform PlatformKind

	FilePath     string
	Title        string
	DurationSecs int
	SizeBytes    int64

	Failure *FailureDetail
}

// Succeeded reports whether the result carries a downloaded file
func (r DownloadResult) Succeeded() bool {
	return r.Failure == nil
}

// SuccessResult builds a successful download result
func SuccessResult(platform PlatformKind, filePath, title string, durationSecs int, sizeBytes int64) DownloadResult {
	if title == "" {
		title = "Unknown"
	}
	return DownloadResult{
		Platform:     platform,
		FilePath:     filePath,
		Title:        title,
		DurationSecs: durationSecs,
		SizeBytes:    sizeBytes,
	}
}

// FailureResult builds a failed download result
func FailureResult(platform PlatformKind, kind FailureKind, detail string) DownloadResult {
	return DownloadResult{
		Platform: platform,
		Failure:  &FailureDetail{Kind: kind, Detail: detail},
	}
}
