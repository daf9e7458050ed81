// Package telegram drives the operator channel through the Telegram Bot
// API. No bot framework is used; the three calls the engine needs
// (sendMessage, getUpdates, answerCallbackQuery) are plain HTTP/JSON.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/quangtd04/autodeliver/internal/port"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	pollTimeout    = 30 * time.Second
	promptTTL      = time.Hour
)

// Bot implements port.Notifier and port.Listener against one operator chat.
// Forced-reply prompt message ids are remembered against their order id so
// inbound replies come back correlated.
type Bot struct {
	token  string
	chatID string
	base   string
	httpc  *http.Client
	logger *slog.Logger

	mu      sync.Mutex
	prompts map[int64]prompt
	offset  int64
}

type prompt struct {
	orderID string
	sentAt  time.Time
}

func New(token, chatID string, logger *slog.Logger) *Bot {
	return &Bot{
		token:   token,
		chatID:  chatID,
		base:    defaultBaseURL,
		httpc:   &http.Client{Timeout: pollTimeout + 10*time.Second},
		logger:  logger,
		prompts: make(map[int64]prompt),
	}
}

func (b *Bot) Send(ctx context.Context, text string) error {
	_, err := b.sendMessage(ctx, text, nil, false)
	return err
}

func (b *Bot) SendActions(ctx context.Context, text string, actions []port.Action) error {
	row := make([]inlineButton, len(actions))
	for i, a := range actions {
		row[i] = inlineButton{Text: a.Label, CallbackData: a.ID}
	}
	markup := &replyMarkup{InlineKeyboard: [][]inlineButton{row}}
	_, err := b.sendMessage(ctx, text, markup, false)
	return err
}

func (b *Bot) AskReply(ctx context.Context, text, orderID string) error {
	messageID, err := b.sendMessage(ctx, text, nil, true)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.prompts[messageID] = prompt{orderID: orderID, sentAt: time.Now()}
	for id, p := range b.prompts {
		if time.Since(p.sentAt) > promptTTL {
			delete(b.prompts, id)
		}
	}
	b.mu.Unlock()
	return nil
}

// Listen long-polls getUpdates and emits operator events until the context
// is done. The returned channel is closed on exit.
func (b *Bot) Listen(ctx context.Context) <-chan port.Event {
	events := make(chan port.Event, 16)

	go func() {
		defer close(events)
		for {
			if ctx.Err() != nil {
				return
			}

			updates, err := b.getUpdates(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				b.logger.Error("telegram poll failed", "err", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(5 * time.Second):
				}
				continue
			}

			for _, u := range updates {
				if u.UpdateID >= b.offset {
					b.offset = u.UpdateID + 1
				}
				if ev, ok := b.toEvent(ctx, u); ok {
					select {
					case events <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}()

	return events
}

func (b *Bot) toEvent(ctx context.Context, u update) (port.Event, bool) {
	if u.CallbackQuery != nil {
		b.answerCallback(ctx, u.CallbackQuery.ID)
		return port.Event{Kind: port.EventCallback, Data: u.CallbackQuery.Data}, true
	}

	msg := u.Message
	if msg == nil || msg.ReplyTo == nil || strconv.FormatInt(msg.Chat.ID, 10) != b.chatID {
		return port.Event{}, false
	}

	b.mu.Lock()
	p, ok := b.prompts[msg.ReplyTo.MessageID]
	b.mu.Unlock()
	if !ok {
		return port.Event{}, false
	}

	return port.Event{Kind: port.EventReply, OrderID: p.orderID, Text: msg.Text}, true
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard,omitempty"`
	ForceReply     bool             `json:"force_reply,omitempty"`
}

type sendResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

type update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *message       `json:"message"`
	CallbackQuery *callbackQuery `json:"callback_query"`
}

type callbackQuery struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type message struct {
	MessageID int64    `json:"message_id"`
	Text      string   `json:"text"`
	Chat      chat     `json:"chat"`
	ReplyTo   *message `json:"reply_to_message"`
}

type chat struct {
	ID int64 `json:"id"`
}

type updatesResponse struct {
	OK          bool     `json:"ok"`
	Description string   `json:"description"`
	Result      []update `json:"result"`
}

func (b *Bot) sendMessage(ctx context.Context, text string, markup *replyMarkup, forceReply bool) (int64, error) {
	body := map[string]any{
		"chat_id":    b.chatID,
		"text":       Escape(text),
		"parse_mode": "MarkdownV2",
	}
	if forceReply {
		body["reply_markup"] = replyMarkup{ForceReply: true}
	} else if markup != nil {
		body["reply_markup"] = markup
	}

	var resp sendResponse
	if err := b.call(ctx, "sendMessage", body, &resp); err != nil {
		return 0, err
	}
	if !resp.OK {
		return 0, fmt.Errorf("telegram sendMessage: %s", resp.Description)
	}
	return resp.Result.MessageID, nil
}

func (b *Bot) getUpdates(ctx context.Context) ([]update, error) {
	body := map[string]any{
		"offset":          b.offset,
		"timeout":         int(pollTimeout.Seconds()),
		"allowed_updates": []string{"message", "callback_query"},
	}

	var resp updatesResponse
	if err := b.call(ctx, "getUpdates", body, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, fmt.Errorf("telegram getUpdates: %s", resp.Description)
	}
	return resp.Result, nil
}

func (b *Bot) answerCallback(ctx context.Context, callbackID string) {
	var resp sendResponse
	err := b.call(ctx, "answerCallbackQuery", map[string]any{"callback_query_id": callbackID}, &resp)
	if err != nil {
		b.logger.Error("telegram answerCallbackQuery failed", "err", err)
	}
}

func (b *Bot) call(ctx context.Context, method string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", b.base, b.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: telegram %s: %v", port.ErrTransient, method, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}
