package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/quangtd04/autodeliver/internal/core/domain"
	"github.com/quangtd04/autodeliver/internal/port"
)

const (
	listWindow  = 24 * time.Hour
	listLimit   = 20
	callTimeout = 15 * time.Second
	dateLayout  = "2006-01-02"
)

// Client talks to the order-source gateway over signed HTTP/JSON.
type Client struct {
	base   string
	signer *Signer
	http   *http.Client
	now    func() time.Time
}

func NewClient(baseURL string, signer *Signer) *Client {
	return &Client{
		base:   baseURL,
		signer: signer,
		http:   &http.Client{Timeout: callTimeout},
		now:    time.Now,
	}
}

type orderDTO struct {
	OrderID        json.Number `json:"order_id"`
	Status         string      `json:"status"`
	ProductID      json.Number `json:"product_id"`
	ProductName    string      `json:"product_name"`
	GameName       string      `json:"game_name"`
	Quantity       int         `json:"quantity"`
	Price          json.Number `json:"price"`
	CreatedAt      int64       `json:"created_at"`
	DeliveryFields []fieldDTO  `json:"delivery_info_field"`
}

type fieldDTO struct {
	FieldName         string `json:"field_name"`
	ValidationPattern string `json:"validation_pattern"`
}

type listResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    []orderDTO `json:"data"`
}

type detailResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	Data    *orderDTO `json:"data"`
}

type actionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ListRecent fetches orders created in the last 24 hours, newest window the
// gateway allows per page.
func (c *Client) ListRecent(ctx context.Context) ([]domain.Order, error) {
	payload := map[string]any{
		"date_start": c.now().Add(-listWindow).Format(dateLayout),
		"limit":      listLimit,
	}

	var resp listResponse
	if err := c.post(ctx, "/order/list", payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("order list rejected: %s", orDefault(resp.Message, "unknown error"))
	}

	orders := make([]domain.Order, 0, len(resp.Data))
	for _, dto := range resp.Data {
		orders = append(orders, dto.toDomain())
	}
	return orders, nil
}

// GetOrder fetches one order's detail; (nil, nil) when the gateway has no
// matching order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	var resp detailResponse
	if err := c.post(ctx, "/order/detail", map[string]any{"order_id": orderID}, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.Data == nil {
		return nil, nil
	}
	order := resp.Data.toDomain()
	return &order, nil
}

// SubmitAction posts an order action. Per the driver contract every failure
// mode collapses to (false, text); only success returns true.
func (c *Client) SubmitAction(ctx context.Context, orderID, action string, payload domain.DeliveryPayload) (bool, string) {
	body := map[string]any{
		"order_id": orderID,
		"action":   action,
	}
	if action == port.ActionDeliver && !payload.IsZero() {
		body["delivery_info"] = payload.Items()
	}

	var resp actionResponse
	if err := c.post(ctx, "/order/action", body, &resp); err != nil {
		return false, err.Error()
	}
	if !resp.Success {
		return false, orDefault(resp.Message, "Failed")
	}
	return true, orDefault(resp.Message, "Success")
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	headers, err := c.signer.Headers(payload)
	if err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header = headers

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", port.ErrTransient, path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (dto orderDTO) toDomain() domain.Order {
	fields := make([]domain.DeliveryField, 0, len(dto.DeliveryFields))
	for _, f := range dto.DeliveryFields {
		fields = append(fields, domain.DeliveryField{
			Name:              f.FieldName,
			ValidationPattern: f.ValidationPattern,
		})
	}

	price, _ := dto.Price.Int64()

	return domain.Order{
		ID:             dto.OrderID.String(),
		Status:         domain.OrderStatus(dto.Status),
		ProductID:      dto.ProductID.String(),
		ProductName:    dto.ProductName,
		GameName:       dto.GameName,
		Quantity:       dto.Quantity,
		Price:          price,
		CreatedAt:      time.UnixMilli(dto.CreatedAt),
		DeliveryFields: fields,
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
