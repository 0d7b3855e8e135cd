package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/vidrelay/internal/domain"
)

type fakeGateway struct {
	mu         sync.Mutex
	sentTexts  []string
	edits      []string
	deleted    []int64
	sentVideos []string
	captions   []string
	nextMsgID  int64
	sendErr    error
	videoErr   error
}

func (g *fakeGateway) SendText(ctx context.Context, conversationID int64, text string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return 0, g.sendErr
	}
	g.sentTexts = append(g.sentTexts, text)
	g.nextMsgID++
	return g.nextMsgID, nil
}

func (g *fakeGateway) EditText(ctx context.Context, conversationID, messageID int64, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edits = append(g.edits, text)
	return nil
}

func (g *fakeGateway) DeleteMessage(ctx context.Context, conversationID, messageID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, messageID)
	return nil
}

func (g *fakeGateway) SendVideo(ctx context.Context, conversationID int64, filePath, caption string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.videoErr != nil {
		return g.videoErr
	}
	g.sentVideos = append(g.sentVideos, filePath)
	g.captions = append(g.captions, caption)
	return nil
}

type fakeFetcher struct {
	mu      sync.Mutex
	fetched []domain.DetectedLink
	result  domain.DownloadResult
	panics  bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, link domain.DetectedLink) domain.DownloadResult {
	f.mu.Lock()
	f.fetched = append(f.fetched, link)
	f.mu.Unlock()
	if f.panics {
		panic("fetcher exploded")
	}
	result := f.result
	result.Platform = link.Platform
	return result
}

// newTestPipeline wires a pipeline with an in-memory fs and a session
// store whose floor is in the past, so messages are eligible once the
// conversation has been primed.
func newTestPipeline(gw *fakeGateway, fetcher domain.Fetcher) (*Pipeline, *SessionStore) {
	sessions := NewSessionStore()
	sessions.now = func() time.Time { return time.Unix(1000, 0) }

	p := NewPipeline(gw, fetcher, sessions, zap.NewNop())
	p.fs = afero.NewMemMapFs()
	return p, sessions
}

func eventAt(conv, msg int64, text string, ts time.Time, private bool) domain.MessageEvent {
	return domain.MessageEvent{
		ConversationID: conv,
		MessageID:      msg,
		SenderID:       7,
		Text:           text,
		Timestamp:      ts,
		Private:        private,
	}
}

// prime makes the conversation known so subsequent messages pass the
// eligibility floor
func prime(p *Pipeline, conv int64) {
	p.HandleMessage(context.Background(), eventAt(conv, 1, "hello", time.Unix(999, 0), true))
}

func TestPipeline_SuccessFlow(t *testing.T) {
	gw := &fakeGateway{}
	filePath := "/downloads/clip.mp4"
	fetcher := &fakeFetcher{result: domain.SuccessResult(domain.PlatformYouTube, filePath, "A Video", 60, 1024)}
	p, _ := newTestPipeline(gw, fetcher)

	require.NoError(t, afero.WriteFile(p.fs, filePath, []byte("video-bytes"), 0644))

	prime(p, 1)
	p.HandleMessage(context.Background(), eventAt(1, 2, "https://youtu.be/dQw4w9WgXcQ", time.Unix(2000, 0), true))
	require.NoError(t, p.Stop(2*time.Second))

	require.Len(t, gw.sentTexts, 1)
	assert.Contains(t, gw.sentTexts[0], "Downloading video from YouTube")
	require.Len(t, gw.sentVideos, 1)
	assert.Equal(t, filePath, gw.sentVideos[0])
	assert.Contains(t, gw.captions[0], "A Video")
	assert.Len(t, gw.deleted, 1, "status message deleted after delivery")

	// File cleaned up after transmission
	exists, err := afero.Exists(p.fs, filePath)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPipeline_FailureFlow(t *testing.T) {
	gw := &fakeGateway{}
	fetcher := &fakeFetcher{result: domain.FailureResult(domain.PlatformTikTok, domain.FailPrivateOrRestricted, "login required")}
	p, sessions := newTestPipeline(gw, fetcher)

	prime(p, 1)
	p.HandleMessage(context.Background(), eventAt(1, 2, "https://vm.tiktok.com/ZMabcd/", time.Unix(2000, 0), true))
	require.NoError(t, p.Stop(2*time.Second))

	require.Len(t, gw.edits, 1, "status message edited with failure text")
	assert.Contains(t, gw.edits[0], "private")
	assert.Empty(t, gw.sentVideos)

	stats := sessions.Stats()
	assert.Equal(t, int64(1), stats.Attempts)
	assert.Equal(t, int64(1), stats.Failures)
}

func TestPipeline_IneligibleMessageSkipped(t *testing.T) {
	gw := &fakeGateway{}
	fetcher := &fakeFetcher{result: domain.SuccessResult(domain.PlatformYouTube, "/x.mp4", "t", 1, 1)}
	p, _ := newTestPipeline(gw, fetcher)

	// First contact sets the floor; the link in it must not download
	p.HandleMessage(context.Background(), eventAt(1, 1, "https://youtu.be/dQw4w9WgXcQ", time.Unix(5000, 0), true))
	// Backlog message at the floor is also skipped
	p.HandleMessage(context.Background(), eventAt(1, 2, "https://youtu.be/dQw4w9WgXcQ", time.Unix(1000, 0), true))
	require.NoError(t, p.Stop(2*time.Second))

	assert.Empty(t, fetcher.fetched)
	assert.Empty(t, gw.sentTexts)
}

func TestPipeline_DuplicateMessageSkipped(t *testing.T) {
	gw := &fakeGateway{}
	fetcher := &fakeFetcher{result: domain.FailureResult(domain.PlatformYouTube, domain.FailUnknown, "x")}
	p, _ := newTestPipeline(gw, fetcher)

	prime(p, 1)
	msg := eventAt(1, 2, "https://youtu.be/dQw4w9WgXcQ", time.Unix(2000, 0), true)
	p.HandleMessage(context.Background(), msg)
	p.HandleMessage(context.Background(), msg)
	require.NoError(t, p.Stop(2*time.Second))

	assert.Len(t, fetcher.fetched, 1)
}

func TestPipeline_GroupChatPolicy(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		private  bool
		expected int
	}{
		{"private downloads everything", "https://youtu.be/dQw4w9WgXcQ", true, 1},
		{"group skips youtube without tag", "https://youtu.be/dQw4w9WgXcQ", false, 0},
		{"group downloads youtube with tag", "https://youtu.be/dQw4w9WgXcQ #download", false, 1},
		{"group downloads tiktok without tag", "https://vm.tiktok.com/ZMabcd/", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{}
			fetcher := &fakeFetcher{result: domain.FailureResult(domain.PlatformYouTube, domain.FailUnknown, "x")}
			p, _ := newTestPipeline(gw, fetcher)

			prime(p, 1)
			p.HandleMessage(context.Background(), eventAt(1, 2, tt.text, time.Unix(2000, 0), tt.private))
			require.NoError(t, p.Stop(2*time.Second))

			assert.Len(t, fetcher.fetched, tt.expected)
		})
	}
}

func TestPipeline_Commands(t *testing.T) {
	tests := []struct {
		command  string
		contains string
	}{
		{"/start", "Video Downloader Bot"},
		{"/help", "How to use"},
		{"/status", "Bot is running"},
		{"/start@vidrelay_bot", "Video Downloader Bot"},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			gw := &fakeGateway{}
			p, _ := newTestPipeline(gw, &fakeFetcher{})

			p.HandleMessage(context.Background(), eventAt(1, 1, tt.command, time.Unix(2000, 0), true))

			require.Len(t, gw.sentTexts, 1)
			assert.Contains(t, gw.sentTexts[0], tt.contains)
		})
	}
}

func TestPipeline_PanicInOneLinkDoesNotStopOthers(t *testing.T) {
	gw := &fakeGateway{}
	fetcher := &fakeFetcher{panics: true}
	p, _ := newTestPipeline(gw, fetcher)

	prime(p, 1)
	p.HandleMessage(context.Background(), eventAt(1, 2, "https://youtu.be/dQw4w9WgXcQ", time.Unix(2000, 0), true))
	require.NoError(t, p.Stop(2*time.Second))

	// The loop survives and keeps handling messages
	fetcher.panics = false
	fetcher.result = domain.FailureResult(domain.PlatformYouTube, domain.FailUnknown, "x")
	p.HandleMessage(context.Background(), eventAt(1, 3, "https://youtu.be/dQw4w9WgXcQ", time.Unix(2001, 0), true))
	require.NoError(t, p.Stop(2*time.Second))

	assert.Len(t, fetcher.fetched, 2)
}

func TestPipeline_SlowDownloadDoesNotBlockDispatch(t *testing.T) {
	gw := &fakeGateway{}
	slowFetcher := &slowBlockingFetcher{release: make(chan struct{})}
	p, _ := newTestPipeline(gw, slowFetcher)

	prime(p, 1)
	prime(p, 2)

	done := make(chan struct{})
	go func() {
		p.HandleMessage(context.Background(), eventAt(1, 2, "https://youtu.be/dQw4w9WgXcQ", time.Unix(2000, 0), true))
		p.HandleMessage(context.Background(), eventAt(2, 2, "hello no links here", time.Unix(2000, 0), true))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked by in-flight download")
	}

	close(slowFetcher.release)
	require.NoError(t, p.Stop(2*time.Second))
}

type slowBlockingFetcher struct {
	release chan struct{}
}

func (f *slowBlockingFetcher) Fetch(ctx context.Context, link domain.DetectedLink) domain.DownloadResult {
	<-f.release
	return domain.FailureResult(link.Platform, domain.FailTimeout, "slow")
}

func TestParseCommand(t *testing.T) {
	assert.Equal(t, "start", parseCommand("/start"))
	assert.Equal(t, "status", parseCommand("/status@some_bot"))
	assert.Equal(t, "help", parseCommand("  /help extra args"))
	assert.Equal(t, "", parseCommand("not a command"))
	assert.Equal(t, "", parseCommand("see /start"))
}
