package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/rl1809/storefront-checkout/internal/core/domain"
)

const userAgent = "storefront-checkout/1.0"

func init() {
	// GraphQL Float and Money inputs reject quoted numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Config struct {
	Endpoint string
	ShopID   string
	Timeout  time.Duration
}

// Client talks to the commerce backend's GraphQL API. Anonymous carts are
// addressed by cart id plus cart token; signed-in customers by bearer token.
type Client struct {
	httpClient *http.Client
	endpoint   string
	shopID     string
}

func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("commerce endpoint is required")
	}
	if cfg.ShopID == "" {
		return nil, errors.New("shop id is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		shopID:   cfg.ShopID,
	}, nil
}

// APIError is a failed GraphQL call: either a non-2xx response or a response
// carrying an errors array.
type APIError struct {
	Operation  string
	StatusCode int
	Messages   []string
	Code       string
}

func (e *APIError) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("commerce %s: %s", e.Operation, msg)
}

// NotFound reports whether the backend said the addressed object does not exist.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.Code == "not-found" || e.Code == "NOT_FOUND"
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

func (c *Client) GetCart(ctx context.Context, ref domain.CartRef) (*domain.Cart, error) {
	vars := map[string]any{"cartId": ref.CartID}
	if ref.CartToken != "" {
		vars["cartToken"] = ref.CartToken
	}

	var out struct {
		Cart *domain.Cart `json:"cart"`
	}
	err := c.do(ctx, ref, "cartById", cartQuery, vars, &out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.NotFound() {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out.Cart, nil
}

func (c *Client) CreateCart(ctx context.Context, ref domain.CartRef, items []domain.NewCartItem) (*domain.CreatedCart, error) {
	input := map[string]any{
		"shopId": c.shopID,
		"items":  cartItemsInput(items),
	}

	var out struct {
		CreateCart domain.CreatedCart `json:"createCart"`
	}
	if err := c.do(ctx, ref, "createCart", createCartMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}
	return &out.CreateCart, nil
}

func (c *Client) AddCartItems(ctx context.Context, ref domain.CartRef, items []domain.NewCartItem) (*domain.Cart, error) {
	input := cartInput(ref)
	input["items"] = cartItemsInput(items)

	var out struct {
		AddCartItems cartPayload `json:"addCartItems"`
	}
	if err := c.do(ctx, ref, "addCartItems", addCartItemsMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}
	return out.AddCartItems.Cart, nil
}

func (c *Client) RemoveCartItems(ctx context.Context, ref domain.CartRef, itemIDs []string) (*domain.Cart, error) {
	input := cartInput(ref)
	input["cartItemIds"] = itemIDs

	var out struct {
		RemoveCartItems cartPayload `json:"removeCartItems"`
	}
	if err := c.do(ctx, ref, "removeCartItems", removeCartItemsMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}
	return out.RemoveCartItems.Cart, nil
}

func (c *Client) SetShippingAddress(ctx context.Context, ref domain.CartRef, address domain.AddressInput) (*domain.Cart, error) {
	input := cartInput(ref)
	input["address"] = address

	var out struct {
		SetShippingAddressOnCart cartPayload `json:"setShippingAddressOnCart"`
	}
	if err := c.do(ctx, ref, "setShippingAddressOnCart", setShippingAddressMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}
	return out.SetShippingAddressOnCart.Cart, nil
}

func (c *Client) SetFulfillmentOption(ctx context.Context, ref domain.CartRef, groupID, methodID string) (*domain.Cart, error) {
	input := cartInput(ref)
	input["fulfillmentGroupId"] = groupID
	input["fulfillmentMethodId"] = methodID

	var out struct {
		SelectFulfillmentOptionForGroup cartPayload `json:"selectFulfillmentOptionForGroup"`
	}
	if err := c.do(ctx, ref, "selectFulfillmentOptionForGroup", selectFulfillmentOptionMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}
	return out.SelectFulfillmentOptionForGroup.Cart, nil
}

func (c *Client) PlaceOrder(ctx context.Context, ref domain.CartRef, input domain.PlaceOrderInput) (*domain.OrderResult, error) {
	var out struct {
		PlaceOrder struct {
			Orders []struct {
				ID string `json:"_id"`
			} `json:"orders"`
			Token string `json:"token"`
		} `json:"placeOrder"`
	}
	if err := c.do(ctx, ref, "placeOrder", placeOrderMutation, map[string]any{"input": input}, &out); err != nil {
		return nil, err
	}

	result := &domain.OrderResult{OrderIDs: make([]string, 0, len(out.PlaceOrder.Orders)), Token: out.PlaceOrder.Token}
	for _, o := range out.PlaceOrder.Orders {
		result.OrderIDs = append(result.OrderIDs, o.ID)
	}
	return result, nil
}

type cartPayload struct {
	Cart *domain.Cart `json:"cart"`
}

func cartInput(ref domain.CartRef) map[string]any {
	input := map[string]any{"cartId": ref.CartID}
	if ref.CartToken != "" {
		input["cartToken"] = ref.CartToken
	}
	return input
}

func cartItemsInput(items []domain.NewCartItem) []map[string]any {
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{
			"productConfiguration": domain.ProductConfiguration{
				ProductID:        item.ProductID,
				ProductVariantID: item.VariantID,
			},
			"quantity": item.Quantity,
			"price": map[string]any{
				"amount":       item.Price.Amount,
				"currencyCode": item.Price.Currency.Code,
			},
		})
	}
	return out
}

func (c *Client) do(ctx context.Context, ref domain.CartRef, op, query string, vars map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if ref.CustomerToken != "" {
		req.Header.Set("Authorization", "Bearer "+ref.CustomerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("commerce %s: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", op, err)
	}

	var gqlResp graphQLResponse
	parseErr := json.Unmarshal(respBody, &gqlResp)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Operation: op, StatusCode: resp.StatusCode}
		if parseErr == nil {
			apiErr.fill(gqlResp.Errors)
		}
		return apiErr
	}
	if parseErr != nil {
		return fmt.Errorf("parsing %s response: %w", op, parseErr)
	}
	if len(gqlResp.Errors) > 0 {
		apiErr := &APIError{Operation: op, StatusCode: resp.StatusCode}
		apiErr.fill(gqlResp.Errors)
		return apiErr
	}

	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("decoding %s data: %w", op, err)
	}
	return nil
}

func (e *APIError) fill(errs []graphQLError) {
	for _, ge := range errs {
		e.Messages = append(e.Messages, ge.Message)
		if e.Code == "" {
			e.Code = ge.Extensions.Code
		}
	}
}
