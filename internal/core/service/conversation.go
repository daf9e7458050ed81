package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/quangtd04/autodeliver/internal/core/domain"
	"github.com/quangtd04/autodeliver/internal/port"
)

// Delivery modes an operator can pick for manual processing.
const (
	ModeSingle = 1 // one value
	ModeList   = 2 // comma-separated values
	ModeFields = 3 // ordered form fields from the order's delivery schema
)

// defaultIdleTimeout is how long a conversation may sit without a reply
// before it is abandoned.
const defaultIdleTimeout = 30 * time.Minute

type conversation struct {
	orderID      string
	mode         int
	fields       []domain.DeliveryField
	inputs       []string
	lastActivity time.Time
}

// ConversationManager runs the per-order manual-delivery state machine.
// Sessions are keyed by order id and replies arrive already correlated to
// their order, so several conversations may be in flight at once. The
// manager's mutex serializes turns, keeping each conversation's replies in
// strict arrival order.
type ConversationManager struct {
	gateway     port.OrderGateway
	notifier    port.Notifier
	driver      *Driver
	logger      *slog.Logger
	idleTimeout time.Duration
	now         func() time.Time

	// turnMu serializes whole turns so a conversation's replies apply in
	// strict arrival order; mu guards only the session map.
	turnMu   sync.Mutex
	mu       sync.Mutex
	sessions map[string]*conversation
}

func NewConversationManager(gateway port.OrderGateway, notifier port.Notifier,
	driver *Driver, logger *slog.Logger) *ConversationManager {
	return &ConversationManager{
		gateway:     gateway,
		notifier:    notifier,
		driver:      driver,
		logger:      logger,
		idleTimeout: defaultIdleTimeout,
		now:         time.Now,
		sessions:    make(map[string]*conversation),
	}
}

// SetIdleTimeout overrides how long a conversation may wait for a reply.
func (m *ConversationManager) SetIdleTimeout(d time.Duration) {
	if d > 0 {
		m.idleTimeout = d
	}
}

// Start opens manual processing for an order: verifies the order exists and
// presents the three delivery-mode choices.
func (m *ConversationManager) Start(ctx context.Context, orderID string) error {
	order, err := m.gateway.GetOrder(ctx, orderID)
	if err != nil {
		m.notify(ctx, fmt.Sprintf("❌ Order lookup failed: %v", err))
		return fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	if order == nil {
		m.notify(ctx, "❌ Order not found")
		return ErrOrderNotFound
	}

	actions := []port.Action{
		{Label: "Single value", ID: fmt.Sprintf("%s%s_%d", callbackDelivery, orderID, ModeSingle)},
		{Label: "Multiple values", ID: fmt.Sprintf("%s%s_%d", callbackDelivery, orderID, ModeList)},
		{Label: "Form fields", ID: fmt.Sprintf("%s%s_%d", callbackDelivery, orderID, ModeFields)},
	}
	text := "🔧 Manual Processing\nSelect delivery info type:\n1. Single value\n2. Multiple values\n3. Form fields"
	if err := m.notifier.SendActions(ctx, text, actions); err != nil {
		return fmt.Errorf("send mode choices: %w", err)
	}
	return nil
}

// SelectMode creates the conversation for an order in the chosen mode and
// sends the first prompt. Mode 3 needs the order to carry a field schema.
func (m *ConversationManager) SelectMode(ctx context.Context, orderID string, mode int) error {
	order, err := m.gateway.GetOrder(ctx, orderID)
	if err != nil {
		m.notify(ctx, fmt.Sprintf("❌ Order lookup failed: %v", err))
		return fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	if order == nil {
		m.notify(ctx, "❌ Order not found")
		return ErrOrderNotFound
	}

	conv := &conversation{
		orderID:      orderID,
		mode:         mode,
		fields:       order.DeliveryFields,
		lastActivity: m.now(),
	}

	var prompt string
	switch mode {
	case ModeSingle:
		prompt = "📝 Enter delivery info in format: value"
	case ModeList:
		prompt = "📝 Enter multiple values separated by comma"
	case ModeFields:
		if len(conv.fields) == 0 {
			m.notify(ctx, "❌ No fields defined for this order type")
			return fmt.Errorf("order %s has no delivery schema", orderID)
		}
		prompt = "📝 Enter " + conv.fields[0].Name + ":"
	default:
		return fmt.Errorf("unknown delivery mode %d", mode)
	}

	m.mu.Lock()
	m.sessions[orderID] = conv
	m.mu.Unlock()

	if err := m.notifier.AskReply(ctx, prompt, orderID); err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}
	return nil
}

// HandleReply feeds one operator answer into the order's conversation.
// Invalid input is reported and leaves the state unchanged; a completed
// conversation submits its payload through the driver and is removed.
func (m *ConversationManager) HandleReply(ctx context.Context, orderID, text string) {
	m.turnMu.Lock()
	defer m.turnMu.Unlock()

	m.mu.Lock()
	conv, ok := m.sessions[orderID]
	m.mu.Unlock()
	if !ok {
		return
	}

	input := strings.TrimSpace(text)
	conv.lastActivity = m.now()

	switch conv.mode {
	case ModeSingle:
		if !m.validate(ctx, input, "") {
			return
		}
		m.complete(ctx, orderID, domain.DeliveryPayload{Values: []string{input}})

	case ModeList:
		parts := strings.Split(input, ",")
		values := make([]string, len(parts))
		for i, p := range parts {
			values[i] = strings.TrimSpace(p)
			if !m.validate(ctx, values[i], "") {
				return
			}
		}
		m.complete(ctx, orderID, domain.DeliveryPayload{Values: values})

	case ModeFields:
		if len(conv.inputs) >= len(conv.fields) {
			// All fields were collected but a previous submission failed and
			// kept the session. Any reply retries with the collected values.
			m.complete(ctx, orderID, conv.fieldsPayload())
			return
		}

		field := conv.fields[len(conv.inputs)]
		if !m.validate(ctx, input, field.ValidationPattern) {
			return
		}
		conv.inputs = append(conv.inputs, input)

		if len(conv.inputs) < len(conv.fields) {
			next := conv.fields[len(conv.inputs)]
			if err := m.notifier.AskReply(ctx, "📝 Enter "+next.Name+":", orderID); err != nil {
				m.logger.Error("channel prompt failed", "order_id", orderID, "err", err)
			}
			return
		}

		m.complete(ctx, orderID, conv.fieldsPayload())
	}
}

func (c *conversation) fieldsPayload() domain.DeliveryPayload {
	fields := make(map[string]string, len(c.fields))
	for i, f := range c.fields {
		fields[f.Name] = c.inputs[i]
	}
	return domain.DeliveryPayload{Fields: fields}
}

// ExpireIdle abandons conversations that have gone quiet, freeing their
// session slot. Called from the poll loop.
func (m *ConversationManager) ExpireIdle(ctx context.Context) {
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	var expired []string
	for id, conv := range m.sessions {
		if conv.lastActivity.Before(cutoff) {
			delete(m.sessions, id)
			expired = append(expired, id)
		}
	}
	m.mu.Unlock()

	for _, id := range expired {
		m.notify(ctx, fmt.Sprintf("⌛ Manual processing abandoned (idle)\nOrder ID: %s", id))
	}
}

// Active reports whether an order has a conversation in flight.
func (m *ConversationManager) Active(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[orderID]
	return ok
}

func (m *ConversationManager) complete(ctx context.Context, orderID string, payload domain.DeliveryPayload) {
	ok, message := m.driver.Deliver(ctx, orderID, payload)
	if !ok {
		// Leave the session in place so the operator can retry or abandon.
		m.notify(ctx, fmt.Sprintf("❌ Delivery Failed\nOrder ID: %s\nError: %s", orderID, message))
		return
	}

	m.mu.Lock()
	delete(m.sessions, orderID)
	m.mu.Unlock()

	m.notify(ctx, fmt.Sprintf("✅ Order Delivered\nOrder ID: %s\nInfo: %s", orderID, payload.Summary()))
}

// validate checks one operator answer: never empty, and matching the field
// pattern when one is defined. Patterns match from the start of the input.
// Failures are reported on the channel.
func (m *ConversationManager) validate(ctx context.Context, value, pattern string) bool {
	if value == "" {
		m.notify(ctx, "❌ Input cannot be empty")
		return false
	}
	if pattern != "" {
		re, err := regexp.Compile(`\A(?:` + pattern + `)`)
		if err != nil {
			m.logger.Error("bad validation pattern", "pattern", pattern, "err", err)
			m.notify(ctx, "❌ Input format invalid")
			return false
		}
		if !re.MatchString(value) {
			m.notify(ctx, "❌ Input format invalid")
			return false
		}
	}
	return true
}

func (m *ConversationManager) notify(ctx context.Context, text string) {
	if err := m.notifier.Send(ctx, text); err != nil {
		m.logger.Error("channel send failed", "err", err)
	}
}
