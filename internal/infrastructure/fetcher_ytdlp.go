package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yourusername/vidrelay/internal/domain"
)

// desktopUserAgent is sent with every tool invocation; some extractors
// refuse requests without a browser-looking agent.
const desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// qualityLadder is the bounded downgrade sequence used when a delivered
// file still exceeds the size ceiling: one retry per rung, then TooLarge.
var qualityLadder = []int{720, 480, 360}

// toolRunner abstracts the external tool invocation so the orchestrator
// can be tested without a yt-dlp binary on PATH.
type toolRunner interface {
	Run(ctx context.Context, args []string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	binary string
}

func (r *execRunner) Run(ctx context.Context, args []string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// YTDLPFetcher drives the external yt-dlp binary with platform-tuned
// options and enforces the transport size ceiling. Stateless per call;
// concurrent fetches write to uuid-derived filenames and never collide.
type YTDLPFetcher struct {
	config *domain.DownloadConfig
	fs     afero.Fs
	runner toolRunner
	logger *zap.Logger
	newID  func() string
}

// NewYTDLPFetcher creates a new yt-dlp backed fetcher
func NewYTDLPFetcher(config *domain.DownloadConfig, logger *zap.Logger) *YTDLPFetcher {
	return &YTDLPFetcher{
		config: config,
		fs:     afero.NewOsFs(),
		runner: &execRunner{binary: config.YTDLPBinary},
		logger: logger,
		newID:  uuid.NewString,
	}
}

// toolOptions builds the per-platform option set. Closed table keyed by
// platform; extending a platform means editing this table, not the flow.
func toolOptions(platform domain.PlatformKind, maxBytes int64) domain.ToolOptions {
	limitMB := maxBytes / (1024 * 1024)
	if limitMB < 1 {
		limitMB = 1
	}

	sized := fmt.Sprintf("best[filesize<%dM]", limitMB)

	opts := domain.ToolOptions{
		FormatChain: []string{sized, "best"},
		UserAgent:   desktopUserAgent,
	}

	if platform == domain.PlatformYouTube {
		// Anti-bot workaround: prefer the android player client, skip
		// the webpage fetch, and cap resolution at 720p up front.
		opts.FormatChain = []string{
			fmt.Sprintf("best[height<=720][filesize<%dM]", limitMB),
			sized,
			"best",
		}
		opts.ExtractorArgs = []string{
			"youtube:player_client=android,web",
			"youtube:player_skip=webpage,configs",
		}
	}

	return opts
}

// Fetch downloads the linked video and returns a structured result. The
// external tool's errors are always mapped to a FailureKind; nothing
// escapes raw.
func (f *YTDLPFetcher) Fetch(ctx context.Context, link domain.DetectedLink) domain.DownloadResult {
	ctx, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	req := domain.DownloadRequest{
		ID:       f.newID(),
		Link:     link,
		DestDir:  f.config.Dir,
		MaxBytes: f.config.MaxSizeBytes,
		Options:  toolOptions(link.Platform, f.config.MaxSizeBytes),
	}

	f.logger.Debug("Starting fetch",
		zap.String("request_id", req.ID),
		zap.String("platform", string(link.Platform)),
		zap.String("url", link.Raw))

	meta, fail := f.probe(ctx, req)
	if fail != nil {
		return domain.DownloadResult{Platform: link.Platform, Failure: fail}
	}

	selectors := []string{strings.Join(req.Options.FormatChain, "/")}
	for _, height := range qualityLadder {
		if link.Platform == domain.PlatformYouTube && height == 720 {
			continue // already the first attempt's cap
		}
		selectors = append(selectors, fmt.Sprintf("best[height<=%d][filesize<%dM]/best[height<=%d]",
			height, req.MaxBytes/(1024*1024), height))
	}

	// If the probe already reports an oversized best format, skip the
	// first attempt and go straight to the downgrade ladder.
	start := 0
	if meta.estimatedSize > req.MaxBytes && len(selectors) > 1 {
		f.logger.Info("Estimated size over ceiling, starting on downgrade ladder",
			zap.String("url", link.Raw),
			zap.Int64("estimated_bytes", meta.estimatedSize),
			zap.Int64("limit_bytes", req.MaxBytes))
		start = 1
	}

	var lastSize int64
	for i := start; i < len(selectors); i++ {
		path, size, fail := f.download(ctx, req, selectors[i])
		if fail != nil {
			return domain.DownloadResult{Platform: link.Platform, Failure: fail}
		}

		if size <= req.MaxBytes {
			return domain.SuccessResult(link.Platform, path, meta.title, meta.durationSecs, size)
		}

		// Oversized delivery: never hand it on, remove and downgrade
		lastSize = size
		if err := f.fs.Remove(path); err != nil {
			f.logger.Warn("Failed to remove oversized file", zap.String("file", path), zap.Error(err))
		}
		if i+1 < len(selectors) {
			f.logger.Info("File over size ceiling, retrying at lower quality",
				zap.String("url", link.Raw),
				zap.Int64("size_bytes", size),
				zap.String("next_format", selectors[i+1]))
		}
	}

	result := domain.FailureResult(link.Platform, domain.FailTooLarge,
		fmt.Sprintf("file size %d exceeds limit %d after quality ladder", lastSize, req.MaxBytes))
	result.SizeBytes = lastSize
	result.Title = meta.title
	return result
}

type probeMeta struct {
	title         string
	durationSecs  int
	estimatedSize int64
}

// probe extracts metadata without downloading
func (f *YTDLPFetcher) probe(ctx context.Context, req domain.DownloadRequest) (probeMeta, *domain.FailureDetail) {
	args := []string{
		"-J",
		"--no-playlist",
		"--no-warnings",
		"--user-agent", req.Options.UserAgent,
	}
	for _, ea := range req.Options.ExtractorArgs {
		args = append(args, "--extractor-args", ea)
	}
	args = append(args, "-f", strings.Join(req.Options.FormatChain, "/"), req.Link.Canonical)

	f.logger.Debug("Probing video metadata",
		zap.String("cmd", ShellEscapeCommand(f.config.YTDLPBinary, args...)))

	stdout, stderr, err := f.runner.Run(ctx, args)
	if err != nil {
		return probeMeta{}, f.mapFailure(ctx, err, stderr)
	}

	var info map[string]interface{}
	if err := json.Unmarshal(stdout, &info); err != nil {
		return probeMeta{}, &domain.FailureDetail{
			Kind:   domain.FailUnknown,
			Detail: fmt.Sprintf("unparseable tool metadata: %v", err),
		}
	}

	meta := probeMeta{title: "Unknown"}
	if title, ok := info["title"].(string); ok && title != "" {
		meta.title = title
	}
	if duration, ok := info["duration"].(float64); ok {
		meta.durationSecs = int(duration)
	}
	if size, ok := info["filesize"].(float64); ok && size > 0 {
		meta.estimatedSize = int64(size)
	} else if size, ok := info["filesize_approx"].(float64); ok && size > 0 {
		meta.estimatedSize = int64(size)
	}

	return meta, nil
}

// download runs the tool for one format selector and returns the
// produced file path and its size
func (f *YTDLPFetcher) download(ctx context.Context, req domain.DownloadRequest, selector string) (string, int64, *domain.FailureDetail) {
	attemptID := f.newID()
	outTemplate := filepath.Join(req.DestDir, attemptID+".%(ext)s")

	args := []string{
		"-f", selector,
		"-o", outTemplate,
		"--no-playlist",
		"--no-warnings",
		"--user-agent", req.Options.UserAgent,
	}
	for _, ea := range req.Options.ExtractorArgs {
		args = append(args, "--extractor-args", ea)
	}
	args = append(args, req.Link.Canonical)

	f.logger.Info("Invoking downloader",
		zap.String("url", req.Link.Raw),
		zap.String("format", selector),
		zap.String("cmd", ShellEscapeCommand(f.config.YTDLPBinary, args...)))

	_, stderr, err := f.runner.Run(ctx, args)
	if err != nil {
		f.removePartials(attemptID, req.DestDir)
		return "", 0, f.mapFailure(ctx, err, stderr)
	}

	path, err := f.findDownloadedFile(attemptID, req.DestDir)
	if err != nil {
		return "", 0, &domain.FailureDetail{Kind: domain.FailUnknown, Detail: err.Error()}
	}

	fi, err := f.fs.Stat(path)
	if err != nil {
		return "", 0, &domain.FailureDetail{Kind: domain.FailUnknown, Detail: fmt.Sprintf("stat downloaded file: %v", err)}
	}

	return path, fi.Size(), nil
}

// findDownloadedFile locates the file written for this attempt. The
// uuid prefix makes the lookup collision-free across concurrent fetches.
func (f *YTDLPFetcher) findDownloadedFile(attemptID, dir string) (string, error) {
	matches, err := afero.Glob(f.fs, filepath.Join(dir, attemptID+".*"))
	if err != nil {
		return "", fmt.Errorf("searching for downloaded file: %w", err)
	}

	var files []string
	for _, m := range matches {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		files = append(files, m)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("downloaded file not found for attempt %s", attemptID)
	}

	sort.Strings(files)
	return files[0], nil
}

// removePartials cleans up partial output after a failed or cancelled
// invocation so no orphaned temp files remain
func (f *YTDLPFetcher) removePartials(attemptID, dir string) {
	matches, err := afero.Glob(f.fs, filepath.Join(dir, attemptID+".*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := f.fs.Remove(m); err != nil {
			f.logger.Warn("Failed to remove partial file", zap.String("file", m), zap.Error(err))
		}
	}
}

// mapFailure translates a tool error plus its stderr into a typed
// failure. Unknown failures keep the diagnostic for logging; it is never
// surfaced to users.
func (f *YTDLPFetcher) mapFailure(ctx context.Context, err error, stderr []byte) *domain.FailureDetail {
	diag := strings.TrimSpace(string(stderr))
	if diag == "" {
		diag = err.Error()
	}

	if ctx.Err() == context.DeadlineExceeded || errors.Is(err, context.DeadlineExceeded) {
		return &domain.FailureDetail{Kind: domain.FailTimeout, Detail: diag}
	}
	if errors.Is(err, exec.ErrNotFound) {
		return &domain.FailureDetail{Kind: domain.FailToolUnavailable, Detail: diag}
	}

	lower := strings.ToLower(diag)
	switch {
	case strings.Contains(lower, "unsupported url"),
		strings.Contains(lower, "requested format is not available"),
		strings.Contains(lower, "no video formats found"):
		return &domain.FailureDetail{Kind: domain.FailUnsupportedURL, Detail: diag}

	case strings.Contains(lower, "private"),
		strings.Contains(lower, "login required"),
		strings.Contains(lower, "sign in"),
		strings.Contains(lower, "registered users"),
		strings.Contains(lower, "not available in your country"),
		strings.Contains(lower, "geo restricted"),
		strings.Contains(lower, "age-restricted"):
		return &domain.FailureDetail{Kind: domain.FailPrivateOrRestricted, Detail: diag}

	case strings.Contains(lower, "unable to download"),
		strings.Contains(lower, "connection"),
		strings.Contains(lower, "network"),
		strings.Contains(lower, "timed out"),
		strings.Contains(lower, "temporary failure"):
		return &domain.FailureDetail{Kind: domain.FailNetworkError, Detail: diag}
	}

	return &domain.FailureDetail{Kind: domain.FailUnknown, Detail: diag}
}
