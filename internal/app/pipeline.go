package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yourusername/vidrelay/internal/domain"
)

const welcomeText = `🎥 Video Downloader Bot

I can download videos from:
• YouTube
• Instagram
• Facebook
• TikTok

In private chats: all videos are downloaded automatically.
In group chats:
• TikTok videos are downloaded automatically
• For other platforms, add a #download tag to your message

Note: I only process new messages sent after I joined the chat.`

const helpText = `🔧 How to use:

1. Send a message containing a video URL from:
   • YouTube (youtube.com, youtu.be)
   • Instagram (instagram.com)
   • Facebook (facebook.com, fb.watch)
   • TikTok (tiktok.com, vm.tiktok.com)

2. Download behavior:
   • Private chats: every supported link is downloaded
   • Group chats: TikTok links download automatically; other platforms need a #download tag

3. The video is posted back into the chat.

Limitations:
• Maximum file size: 50MB
• Only new messages are processed (after the bot joined)
• Video content only

Commands:
/start - Show welcome message
/help - Show this help message
/status - Check bot status`

// Pipeline wires inbound chat events through eligibility filtering, URL
// classification and download orchestration, and sends results back via
// the gateway. Each message is handled on its own goroutine so a slow
// download in one conversation never stalls another.
type Pipeline struct {
	gateway  domain.Gateway
	fetcher  domain.Fetcher
	sessions *SessionStore
	fs       afero.Fs
	logger   *zap.Logger

	mu        sync.Mutex
	processed map[messageKey]struct{}
	wg        sync.WaitGroup
}

type messageKey struct {
	conversationID int64
	messageID      int64
}

// ErrShutdownTimeout is returned when in-flight downloads don't finish
// within the stop timeout.
var ErrShutdownTimeout = fmt.Errorf("pipeline shutdown timed out")

// NewPipeline creates a new message pipeline
func NewPipeline(gateway domain.Gateway, fetcher domain.Fetcher, sessions *SessionStore, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		gateway:   gateway,
		fetcher:   fetcher,
		sessions:  sessions,
		fs:        afero.NewOsFs(),
		logger:    logger,
		processed: make(map[messageKey]struct{}),
	}
}

// HandleMessage processes one inbound chat event. It returns quickly;
// download work continues on a background goroutine.
func (p *Pipeline) HandleMessage(ctx context.Context, msg domain.MessageEvent) {
	if msg.Text == "" {
		return
	}

	if cmd := parseCommand(msg.Text); cmd != "" {
		p.handleCommand(ctx, msg, cmd)
		return
	}

	if !p.sessions.Observe(msg.ConversationID, msg.Timestamp) {
		p.logger.Debug("Message not eligible",
			zap.Int64("conversation_id", msg.ConversationID),
			zap.Int64("message_id", msg.MessageID))
		return
	}

	if !p.markProcessed(msg) {
		return
	}

	links := domain.Classify(msg.Text)
	if len(links) == 0 {
		return
	}

	hasDownloadTag := strings.Contains(strings.ToLower(msg.Text), "#download")

	for _, link := range links {
		if !shouldDownload(link.Platform, msg.Private, hasDownloadTag) {
			p.logger.Info("Skipping link without download tag in group chat",
				zap.String("platform", string(link.Platform)),
				zap.String("url", link.Raw))
			continue
		}

		p.wg.Add(1)
		go func(link domain.DetectedLink) {
			defer p.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("Panic while processing link",
						zap.Any("panic", r),
						zap.String("url", link.Raw))
				}
			}()
			p.processLink(ctx, msg, link)
		}(link)
	}
}

// Stop waits for in-flight downloads to finish, up to timeout
func (p *Pipeline) Stop(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

// markProcessed records a message ID, reporting false if already seen
func (p *Pipeline) markProcessed(msg domain.MessageEvent) bool {
	key := messageKey{msg.ConversationID, msg.MessageID}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, seen := p.processed[key]; seen {
		return false
	}
	p.processed[key] = struct{}{}
	return true
}

// shouldDownload applies the chat-type download policy: everything in
// private chats, TikTok anywhere, other platforms only when tagged.
func shouldDownload(platform domain.PlatformKind, private, hasDownloadTag bool) bool {
	return private || platform == domain.PlatformTikTok || hasDownloadTag
}

func (p *Pipeline) processLink(ctx context.Context, msg domain.MessageEvent, link domain.DetectedLink) {
	p.logger.Info("Processing video link",
		zap.Int64("conversation_id", msg.ConversationID),
		zap.String("platform", string(link.Platform)),
		zap.String("url", link.Raw))

	p.sessions.RecordAttempt(msg.ConversationID)

	statusID, err := p.gateway.SendText(ctx, msg.ConversationID,
		fmt.Sprintf("🔄 Downloading video from %s...", link.Platform.Label()))
	if err != nil {
		p.logger.Warn("Failed to send status message", zap.Error(err))
	}

	result := p.fetcher.Fetch(ctx, link)
	plan := Render(result)

	if !result.Succeeded() {
		p.logger.Warn("Download failed",
			zap.String("url", link.Raw),
			zap.String("kind", string(result.Failure.Kind)),
			zap.String("detail", result.Failure.Detail))
		p.sessions.RecordOutcome(msg.ConversationID, false)
		p.respondText(ctx, msg.ConversationID, statusID, plan.Text)
		return
	}

	if err := p.gateway.SendVideo(ctx, msg.ConversationID, plan.FilePath, plan.Caption); err != nil {
		p.logger.Error("Failed to send video",
			zap.String("file", plan.FilePath),
			zap.Error(err))
		p.sessions.RecordOutcome(msg.ConversationID, false)
		p.respondText(ctx, msg.ConversationID, statusID, "❌ An error occurred while sending the video. Please try again later.")
		p.cleanupFile(plan.FilePath)
		return
	}

	if statusID != 0 {
		if err := p.gateway.DeleteMessage(ctx, msg.ConversationID, statusID); err != nil {
			p.logger.Warn("Failed to delete status message", zap.Error(err))
		}
	}

	p.sessions.RecordOutcome(msg.ConversationID, true)
	p.cleanupFile(plan.FilePath)

	p.logger.Info("Video delivered",
		zap.Int64("conversation_id", msg.ConversationID),
		zap.String("title", result.Title),
		zap.Int64("size_bytes", result.SizeBytes))
}

// respondText edits the status message in place, or sends a fresh one if
// the status message never made it out
func (p *Pipeline) respondText(ctx context.Context, conversationID, statusID int64, text string) {
	if statusID != 0 {
		if err := p.gateway.EditText(ctx, conversationID, statusID, text); err == nil {
			return
		}
	}
	if _, err := p.gateway.SendText(ctx, conversationID, text); err != nil {
		p.logger.Warn("Failed to send failure message", zap.Error(err))
	}
}

func (p *Pipeline) cleanupFile(path string) {
	if path == "" {
		return
	}
	if err := p.fs.Remove(path); err != nil {
		p.logger.Warn("Failed to clean up downloaded file",
			zap.String("file", path),
			zap.Error(err))
	}
}

func (p *Pipeline) handleCommand(ctx context.Context, msg domain.MessageEvent, cmd string) {
	var text string
	switch cmd {
	case "start":
		text = welcomeText
	case "help":
		text = helpText
	case "status":
		stats := p.sessions.Stats()
		labels := make([]string, 0, len(domain.Platforms()))
		for _, platform := range domain.Platforms() {
			labels = append(labels, platform.Label())
		}
		text = fmt.Sprintf(`📊 Bot Status

✅ Bot is running
💬 Conversations: %d
⬇️ Download attempts: %d
✔️ Successful: %d
❌ Failed: %d
🔧 Supported platforms: %s`,
			stats.Conversations, stats.Attempts, stats.Successes, stats.Failures,
			strings.Join(labels, ", "))
	default:
		return
	}

	if _, err := p.gateway.SendText(ctx, msg.ConversationID, text); err != nil {
		p.logger.Warn("Failed to send command reply",
			zap.String("command", cmd),
			zap.Error(err))
	}
}

// parseCommand extracts a bot command name from message text, stripping
// any @botname suffix. Returns "" for non-command messages.
func parseCommand(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0][1:]
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}
