package billpay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/nimasrn/vtu-gateway/internal/model"
)

const defaultCallTimeout = 30 * time.Second

// RESTClient talks the generic provider REST API over fasthttp. One
// instance per configured provider row; the registry owns their
// lifecycle.
type RESTClient struct {
	code    string
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *fasthttp.Client
}

type RESTOption func(*RESTClient)

func WithTimeout(d time.Duration) RESTOption {
	return func(c *RESTClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func NewRESTClient(p *model.Provider, opts ...RESTOption) *RESTClient {
	c := &RESTClient{
		code:    p.Code,
		baseURL: p.BaseURL,
		apiKey:  p.APIKey,
		timeout: defaultCallTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = &fasthttp.Client{
		MaxConnsPerHost:     512,
		ReadTimeout:         c.timeout,
		WriteTimeout:        c.timeout,
		MaxIdleConnDuration: 60 * time.Second,
	}
	return c
}

func (c *RESTClient) Code() string { return c.code }

func (c *RESTClient) PurchaseAirtime(ctx context.Context, req AirtimeRequest) (*Result, error) {
	return c.call(ctx, "POST", "/api/v1/airtime", req)
}

func (c *RESTClient) PurchaseData(ctx context.Context, req DataRequest) (*Result, error) {
	return c.call(ctx, "POST", "/api/v1/data", req)
}

func (c *RESTClient) PurchaseCable(ctx context.Context, req CableRequest) (*Result, error) {
	return c.call(ctx, "POST", "/api/v1/cable", req)
}

func (c *RESTClient) PurchaseElectricity(ctx context.Context, req ElectricityRequest) (*Result, error) {
	return c.call(ctx, "POST", "/api/v1/electricity", req)
}

func (c *RESTClient) PurchaseExamPin(ctx context.Context, req ExamPinRequest) (*Result, error) {
	return c.call(ctx, "POST", "/api/v1/exam-pin", req)
}

func (c *RESTClient) VerifyCableAccount(ctx context.Context, cableProvider, smartcardNumber string) (*Customer, error) {
	res, err := c.call(ctx, "POST", "/api/v1/cable/verify", map[string]string{
		"cable_provider":   cableProvider,
		"smartcard_number": smartcardNumber,
	})
	if err != nil {
		return nil, err
	}
	return customerFromResult(res)
}

func (c *RESTClient) VerifyElectricityMeter(ctx context.Context, disco, meterNumber, meterType string) (*Customer, error) {
	res, err := c.call(ctx, "POST", "/api/v1/electricity/verify", map[string]string{
		"disco":        disco,
		"meter_number": meterNumber,
		"meter_type":   meterType,
	})
	if err != nil {
		return nil, err
	}
	return customerFromResult(res)
}

func (c *RESTClient) TransactionStatus(ctx context.Context, reference string) (*Result, error) {
	return c.call(ctx, "GET", "/api/v1/transactions/"+url.PathEscape(reference), nil)
}

func (c *RESTClient) Balance(ctx context.Context) (*Result, error) {
	return c.call(ctx, "GET", "/api/v1/balance", nil)
}

func (c *RESTClient) Networks(ctx context.Context) ([]Network, error) {
	var out []Network
	if err := c.list(ctx, "/api/v1/networks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RESTClient) CableProviders(ctx context.Context) ([]Biller, error) {
	var out []Biller
	if err := c.list(ctx, "/api/v1/cable/providers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RESTClient) ElectricityProviders(ctx context.Context) ([]Biller, error) {
	var out []Biller
	if err := c.list(ctx, "/api/v1/electricity/providers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RESTClient) ExamProviders(ctx context.Context) ([]Biller, error) {
	var out []Biller
	if err := c.list(ctx, "/api/v1/exam-pin/providers", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RESTClient) CablePlans(ctx context.Context, cableProvider string) ([]CablePlan, error) {
	var out []CablePlan
	path := "/api/v1/cable/plans?cable_provider=" + url.QueryEscape(cableProvider)
	if err := c.list(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// call performs one provider request. A 2xx answer is normalized with
// ParseResult. A 4xx answer with a parseable body is the provider
// saying no (business failure); everything else is a transport fault.
func (c *RESTClient) call(ctx context.Context, method, path string, payload interface{}) (*Result, error) {
	body, statusCode, err := c.doRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return ParseResult(body), nil
	case statusCode >= 400 && statusCode < 500:
		res := ParseResult(body)
		res.Success = false
		if res.Message == "" {
			res.Message = fmt.Sprintf("provider rejected request with status %d", statusCode)
		}
		return res, nil
	default:
		return nil, fmt.Errorf("unexpected status code from provider %s: %d", c.code, statusCode)
	}
}

func (c *RESTClient) list(ctx context.Context, path string, out interface{}) error {
	body, statusCode, err := c.doRequest(ctx, "GET", path, nil)
	if err != nil {
		return err
	}
	if statusCode != fasthttp.StatusOK {
		return fmt.Errorf("unexpected status code from provider %s: %d", c.code, statusCode)
	}

	// Inventory answers come either bare or wrapped in {"data": [...]}.
	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Data) > 0 {
		body = wrapped.Data
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal provider %s response: %w", c.code, err)
	}
	return nil
}

func (c *RESTClient) doRequest(ctx context.Context, method, path string, payload interface{}) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, 0, fmt.Errorf("request to provider %s failed: %w", c.code, err)
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())

	return body, resp.StatusCode(), nil
}

func customerFromResult(res *Result) (*Customer, error) {
	if !res.Success {
		msg := res.Message
		if msg == "" {
			msg = "verification failed"
		}
		return nil, fmt.Errorf("%s", msg)
	}
	var payload struct {
		Customer
		Data *Customer `json:"data"`
	}
	if err := json.Unmarshal(res.Raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification response: %w", err)
	}
	if payload.Data != nil && payload.Data.Name != "" {
		return payload.Data, nil
	}
	if payload.Name == "" {
		return nil, fmt.Errorf("verification response missing customer name")
	}
	return &payload.Customer, nil
}
