package domain

import "context"

// Fetcher resolves a detected link to a local media file.
//
// Implementations always return a DownloadResult: failures from the
// extraction tool are mapped to a FailureKind, never propagated raw.
// Each call is independent; two concurrent fetches of the same URL
// perform two downloads.
type Fetcher interface {
	Fetch(ctx context.Context, link DetectedLink) DownloadResult
}
