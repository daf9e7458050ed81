package telegram

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/quangtd04/autodeliver/internal/port"
)

func TestEscape(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"a_b*c", `a\_b\*c`},
		{"Order ID: ORD-12.3!", `Order ID: ORD\-12\.3\!`},
		{"[link](x)", `\[link\]\(x\)`},
		{`back\slash`, `back\\slash`},
	}

	for _, c := range cases {
		if got := Escape(c.in); got != c.want {
			t.Errorf("Escape(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// fakeAPI records Bot API calls and plays back scripted updates.
type fakeAPI struct {
	mu            sync.Mutex
	sent          []map[string]any
	nextMessageID int64
	updates       []update
}

func (f *fakeAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			f.sent = append(f.sent, body)
			f.nextMessageID++
			json.NewEncoder(w).Encode(map[string]any{
				"ok":     true,
				"result": map[string]any{"message_id": f.nextMessageID},
			})
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			updates := f.updates
			f.updates = nil
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": updates})
		default:
			json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{}})
		}
	}
}

func newTestBot(t *testing.T) (*Bot, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)

	bot := New("test-token", "42", slog.New(slog.NewTextHandler(io.Discard, nil)))
	bot.base = srv.URL
	return bot, api
}

func TestSend_EscapesText(t *testing.T) {
	bot, api := newTestBot(t)

	if err := bot.Send(context.Background(), "Order ID: o-1.2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.sent) != 1 {
		t.Fatalf("expected 1 sendMessage, got %d", len(api.sent))
	}
	if got := api.sent[0]["text"]; got != `Order ID: o\-1\.2` {
		t.Errorf("unexpected text %q", got)
	}
	if api.sent[0]["chat_id"] != "42" {
		t.Errorf("unexpected chat id %v", api.sent[0]["chat_id"])
	}
}

func TestSendActions_BuildsInlineKeyboard(t *testing.T) {
	bot, api := newTestBot(t)

	err := bot.SendActions(context.Background(), "pick one", []port.Action{
		{Label: "Process Manually", ID: "manual_process_o1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	markup, _ := api.sent[0]["reply_markup"].(map[string]any)
	rows, _ := markup["inline_keyboard"].([]any)
	if len(rows) != 1 {
		t.Fatalf("expected 1 keyboard row, got %v", markup)
	}
	buttons, _ := rows[0].([]any)
	button, _ := buttons[0].(map[string]any)
	if button["callback_data"] != "manual_process_o1" {
		t.Errorf("unexpected callback data: %v", button)
	}
}

func TestAskReply_CorrelatesReplyToOrder(t *testing.T) {
	bot, api := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := bot.AskReply(ctx, "Enter value", "o1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	api.mu.Lock()
	if got := api.sent[0]["reply_markup"].(map[string]any)["force_reply"]; got != true {
		t.Errorf("expected force_reply, got %v", api.sent[0]["reply_markup"])
	}
	promptID := api.nextMessageID
	api.updates = []update{{
		UpdateID: 1,
		Message: &message{
			MessageID: 100,
			Text:      "the-answer",
			Chat:      chat{ID: 42},
			ReplyTo:   &message{MessageID: promptID},
		},
	}}
	api.mu.Unlock()

	events := bot.Listen(ctx)
	select {
	case ev := <-events:
		if ev.Kind != port.EventReply {
			t.Errorf("expected reply event, got %v", ev.Kind)
		}
		if ev.OrderID != "o1" || ev.Text != "the-answer" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestListen_EmitsCallbackEvents(t *testing.T) {
	bot, api := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api.mu.Lock()
	api.updates = []update{{
		UpdateID: 7,
		CallbackQuery: &callbackQuery{ID: "cb1", Data: "manual_process_o9"},
	}}
	api.mu.Unlock()

	events := bot.Listen(ctx)
	select {
	case ev := <-events:
		if ev.Kind != port.EventCallback || ev.Data != "manual_process_o9" {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestListen_DropsUnrelatedMessages(t *testing.T) {
	bot, api := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api.mu.Lock()
	api.updates = []update{
		{UpdateID: 1, Message: &message{MessageID: 5, Text: "hello"}},
		{UpdateID: 2, CallbackQuery: &callbackQuery{ID: "cb", Data: "check_stock_p1"}},
	}
	api.mu.Unlock()

	events := bot.Listen(ctx)
	select {
	case ev := <-events:
		// The plain message has no outstanding prompt, so the first event
		// must be the callback.
		if ev.Kind != port.EventCallback {
			t.Errorf("expected callback event, got %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
