package nailit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wolfman30/salon-whatsapp-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultBaseURL = "http://nailit.innovasolution.net"
	defaultTimeout = 15 * time.Second
	basePath       = "/NailItMobile/api"
	tokenHeader    = "X-NailItMobile-SecurityToken"
	languageCode   = "E"
	deviceTypeID   = 2
)

var (
	// ErrInvalidPhone is returned when registration rejects the mobile number format.
	ErrInvalidPhone = errors.New("nailit: invalid phone number")
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("nailit: not found")
)

var tracer = otel.Tracer("salon.internal.nailit")

// Client wraps the NailIt mobile REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *logging.Logger
}

// NewClient constructs a NailIt REST client. A zero timeout uses the default.
func NewClient(baseURL, token string, timeout time.Duration, logger *logging.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger,
	}
}

// RegisterUser registers the customer or returns the existing app user.
func (c *Client) RegisterUser(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if req.LoginType == 0 {
		req.LoginType = 1
	}
	var resp RegisterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/Register", req, &resp); err != nil {
		return nil, fmt.Errorf("register user: %w", err)
	}
	if resp.Status != 0 {
		apiErr := &APIError{Status: resp.Status, Message: resp.Message}
		if mentionsPhone(resp.Message) {
			return nil, fmt.Errorf("register user: %w: %w", ErrInvalidPhone, apiErr)
		}
		return nil, fmt.Errorf("register user: %w", apiErr)
	}
	return &resp, nil
}

// SaveOrder submits an order.
func (c *Client) SaveOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	var resp OrderResponse
	if err := c.doJSON(ctx, http.MethodPost, "/SaveOrder", req, &resp); err != nil {
		return nil, fmt.Errorf("save order: %w", err)
	}
	if resp.Status != 0 || resp.OrderID == 0 {
		return nil, fmt.Errorf("save order: %w", &APIError{Status: resp.Status, Message: resp.Message})
	}
	return &resp, nil
}

// GetAvailableServiceStaff lists staff and their free time frames for a service on a date.
func (c *Client) GetAvailableServiceStaff(ctx context.Context, itemID, locationID int, date string) ([]StaffAvailability, error) {
	path := fmt.Sprintf("/GetServiceStaff1/%d/%d/%s/%s", itemID, locationID, languageCode, url.PathEscape(date))
	var wrapped struct {
		Envelope
		Specialists []StaffAvailability `json:"Specialists"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &wrapped); err != nil {
		return nil, fmt.Errorf("get service staff: %w", err)
	}
	if wrapped.Status != 0 {
		return nil, fmt.Errorf("get service staff: %w", &APIError{Status: wrapped.Status, Message: wrapped.Message})
	}
	return wrapped.Specialists, nil
}

// GetOrderPaymentDetail returns payment status and booking summary for an order.
func (c *Client) GetOrderPaymentDetail(ctx context.Context, orderID int) (*PaymentDetail, error) {
	path := fmt.Sprintf("/GetOrderPaymentDetail/%d", orderID)
	var detail PaymentDetail
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &detail); err != nil {
		return nil, fmt.Errorf("get payment detail: %w", err)
	}
	if detail.Status != 0 || detail.OrderID == 0 {
		return nil, fmt.Errorf("get payment detail %d: %w", orderID, ErrNotFound)
	}
	return &detail, nil
}

// GetLocations lists salon branches.
func (c *Client) GetLocations(ctx context.Context) ([]Location, error) {
	var wrapped struct {
		Envelope
		Locations []Location `json:"Locations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/GetLocations/"+languageCode, nil, &wrapped); err != nil {
		return nil, fmt.Errorf("get locations: %w", err)
	}
	return wrapped.Locations, nil
}

// GetPaymentTypes lists payment methods for the mobile device type.
func (c *Client) GetPaymentTypes(ctx context.Context) ([]PaymentType, error) {
	path := fmt.Sprintf("/GetPaymentTypesByDevice/%s/%d", languageCode, deviceTypeID)
	var wrapped struct {
		Envelope
		PaymentTypes []PaymentType `json:"PaymentTypes"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &wrapped); err != nil {
		return nil, fmt.Errorf("get payment types: %w", err)
	}
	return wrapped.PaymentTypes, nil
}

// GetItemsByLocation pages through the services offered at a location.
// It returns the page items and the total item count.
func (c *Client) GetItemsByLocation(ctx context.Context, locationID, page, pageSize int) ([]Item, int, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	body := map[string]any{
		"Lang":            languageCode,
		"Location_Ids":    []int{locationID},
		"Is_Home_Service": false,
		"Page_No":         page,
		"Item_Count":      pageSize,
	}
	var wrapped struct {
		Envelope
		Items      []Item `json:"Items"`
		TotalItems int    `json:"Total_Items"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/GetItemsByDate", body, &wrapped); err != nil {
		return nil, 0, fmt.Errorf("get items: %w", err)
	}
	return wrapped.Items, wrapped.TotalItems, nil
}

// GetOrderHistory lists recent orders placed with the given mobile number.
func (c *Client) GetOrderHistory(ctx context.Context, mobile string) ([]CustomerOrder, error) {
	q := url.Values{}
	q.Set("mobile", mobile)
	var wrapped struct {
		Envelope
		Orders []CustomerOrder `json:"Orders"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/GetOrderHistory?"+q.Encode(), nil, &wrapped); err != nil {
		return nil, fmt.Errorf("get order history: %w", err)
	}
	return wrapped.Orders, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	ctx, span := tracer.Start(ctx, "nailit.request")
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("salon.nailit.path", path),
	)

	endpoint := c.baseURL + basePath + path

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set(tokenHeader, c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("nailit API non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		err := fmt.Errorf("nailit API returned %d: %s", resp.StatusCode, msg)
		span.RecordError(err)
		return err
	}

	if len(respBody) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func mentionsPhone(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "mobile") || strings.Contains(lower, "phone")
}
