package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/vidrelay/internal/domain"
)

// TelegramGateway implements domain.Gateway over the Telegram Bot API
// with getUpdates long polling. Only the small API subset the pipeline
// needs is modeled.
type TelegramGateway struct {
	config *domain.TelegramConfig
	http   *http.Client
	logger *zap.Logger
}

// NewTelegramGateway creates a new Telegram gateway
func NewTelegramGateway(config *domain.TelegramConfig, logger *zap.Logger) *TelegramGateway {
	return &TelegramGateway{
		config: config,
		http:   &http.Client{},
		logger: logger,
	}
}

type tgUpdate struct {
	UpdateID int64      `json:"update_id"`
	Message  *tgMessage `json:"message,omitempty"`
}

type tgMessage struct {
	MessageID int64   `json:"message_id"`
	Date      int64   `json:"date"`
	Text      string  `json:"text,omitempty"`
	Chat      *tgChat `json:"chat,omitempty"`
	From      *tgUser `json:"from,omitempty"`
}

type tgChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

type tgUser struct {
	ID    int64 `json:"id"`
	IsBot bool  `json:"is_bot,omitempty"`
}

type tgResponse struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
}

// Poll runs the long-polling loop until ctx is cancelled, delivering
// every text message to handle. Handlers must return quickly; slow work
// belongs on their own goroutines so one chat never stalls another.
func (g *TelegramGateway) Poll(ctx context.Context, handle func(context.Context, domain.MessageEvent)) error {
	var offset int64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, next, err := g.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.logger.Warn("getUpdates failed, backing off", zap.Error(err))
			select {
			case <-time.After(3 * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		offset = next

		for _, u := range updates {
			msg := u.Message
			if msg == nil || msg.Chat == nil || msg.Text == "" {
				continue
			}
			if msg.From != nil && msg.From.IsBot {
				continue
			}

			event := domain.MessageEvent{
				ConversationID: msg.Chat.ID,
				MessageID:      msg.MessageID,
				Text:           msg.Text,
				Timestamp:      time.Unix(msg.Date, 0),
				Private:        msg.Chat.Type == "private",
			}
			if msg.From != nil {
				event.SenderID = msg.From.ID
			}

			handle(ctx, event)
		}
	}
}

func (g *TelegramGateway) getUpdates(ctx context.Context, offset int64) ([]tgUpdate, int64, error) {
	timeout := g.config.PollTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	url := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d&allowed_updates=[\"message\"]",
		g.config.APIBase, g.config.Token, int(timeout.Seconds()))
	if offset > 0 {
		url += fmt.Sprintf("&offset=%d", offset)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, offset, err
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, offset, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, offset, fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out struct {
		OK     bool       `json:"ok"`
		Result []tgUpdate `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, offset, err
	}
	if !out.OK {
		return nil, offset, fmt.Errorf("telegram getUpdates: ok=false")
	}

	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}

// SendText sends a plain text message and returns its message ID
func (g *TelegramGateway) SendText(ctx context.Context, conversationID int64, text string) (int64, error) {
	payload := map[string]interface{}{
		"chat_id": conversationID,
		"text":    text,
	}

	result, err := g.callJSON(ctx, "sendMessage", payload)
	if err != nil {
		return 0, err
	}

	var sent tgMessage
	if err := json.Unmarshal(result, &sent); err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditText replaces the text of a previously sent message
func (g *TelegramGateway) EditText(ctx context.Context, conversationID, messageID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id":    conversationID,
		"message_id": messageID,
		"text":       text,
	}
	_, err := g.callJSON(ctx, "editMessageText", payload)
	return err
}

// DeleteMessage removes a previously sent message
func (g *TelegramGateway) DeleteMessage(ctx context.Context, conversationID, messageID int64) error {
	payload := map[string]interface{}{
		"chat_id":    conversationID,
		"message_id": messageID,
	}
	_, err := g.callJSON(ctx, "deleteMessage", payload)
	return err
}

// SendVideo uploads a local video file via multipart sendVideo
func (g *TelegramGateway) SendVideo(ctx context.Context, conversationID int64, filePath, caption string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		defer pw.Close()
		defer mw.Close()

		_ = mw.WriteField("chat_id", strconv.FormatInt(conversationID, 10))
		if caption != "" {
			_ = mw.WriteField("caption", caption)
		}

		part, err := mw.CreateFormFile("video", filepath.Base(filePath))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
	}()

	url := fmt.Sprintf("%s/bot%s/sendVideo", g.config.APIBase, g.config.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out tgResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if !out.OK {
		return fmt.Errorf("telegram sendVideo: ok=false")
	}
	return nil
}

// callJSON posts a JSON payload to a Bot API method and returns the
// raw result on ok=true
func (g *TelegramGateway) callJSON(ctx context.Context, method string, payload interface{}) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/bot%s/%s", g.config.APIBase, g.config.Token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out tgResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if !out.OK {
		return nil, fmt.Errorf("telegram %s: ok=false", method)
	}
	return out.Result, nil
}
