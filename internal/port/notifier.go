package port

import "context"

// Action is one labeled button attached to a channel message. ID is an
// opaque callback value routed back through the Listener on press.
type Action struct {
	Label string
	ID    string
}

type Notifier interface {
	// Send posts a formatted text message to the operator channel.
	Send(ctx context.Context, text string) error

	// SendActions posts a message with a row of labeled action buttons.
	SendActions(ctx context.Context, text string, actions []Action) error

	// AskReply posts a prompt that forces the operator's next reply to be
	// treated as its answer. The orderID is remembered against the prompt so
	// the reply comes back correlated (Event.OrderID).
	AskReply(ctx context.Context, text, orderID string) error
}

type EventKind int

const (
	// EventCallback is a button press; Data carries the action ID.
	EventCallback EventKind = iota
	// EventReply is a free-text answer to an AskReply prompt; OrderID carries
	// the correlated order and Text the operator's input.
	EventReply
)

// Event is one inbound operator interaction from the channel.
type Event struct {
	Kind    EventKind
	Data    string
	OrderID string
	Text    string
}

type Listener interface {
	// Listen starts consuming channel updates until the context is done,
	// emitting operator events on the returned channel. The channel is
	// closed when the listener stops.
	Listen(ctx context.Context) <-chan Event
}
