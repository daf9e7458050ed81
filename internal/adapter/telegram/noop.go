package telegram

import (
	"context"

	"github.com/quangtd04/autodeliver/internal/port"
)

// Disabled is the channel used when no Telegram credentials are configured:
// every send is a silent no-op and the listener never emits an event.
type Disabled struct{}

func (Disabled) Send(context.Context, string) error { return nil }

func (Disabled) SendActions(context.Context, string, []port.Action) error { return nil }

func (Disabled) AskReply(context.Context, string, string) error { return nil }

func (Disabled) Listen(ctx context.Context) <-chan port.Event {
	events := make(chan port.Event)
	go func() {
		<-ctx.Done()
		close(events)
	}()
	return events
}
