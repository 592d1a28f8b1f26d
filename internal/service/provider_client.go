package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/otpbay/otpbay/internal/models"

	"github.com/sirupsen/logrus"
)

// ProviderOrder is a live number reservation at the provisioning provider.
type ProviderOrder struct {
	OrderID string
	Number  string
}

// ProviderClient wraps the external number-provisioning API. Every call is
// bounded by the HTTP client timeout; provider failures surface as
// ErrProviderUnavailable or ErrCodeNotReady, never as a fault.
type ProviderClient interface {
	AcquireNumber(ctx context.Context, country, operator, service string) (*ProviderOrder, error)
	CheckMessages(ctx context.Context, orderID string) (string, error)
	Finish(ctx context.Context, orderID string) error
	GetBalance(ctx context.Context) (float64, string, error)
}

type smsProviderClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *logrus.Logger
}

func NewProviderClient(apiKey, baseURL string, timeout time.Duration, logger *logrus.Logger) ProviderClient {
	return &smsProviderClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (c *smsProviderClient) AcquireNumber(ctx context.Context, country, operator, service string) (*ProviderOrder, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("action", "getNumber")
	params.Set("service", c.mapService(service))
	params.Set("country", c.mapCountry(country))

	if operator != "" {
		params.Set("operator", operator)
	}

	resp, err := c.makeRequest(ctx, params)
	if err != nil {
		c.logger.Errorf("Provider getNumber failed: %v", err)
		return nil, models.ErrProviderUnavailable
	}

	// Response format: ACCESS_NUMBER:<order id>:<phone number>
	parts := strings.Split(resp, ":")
	if len(parts) < 3 || parts[0] != "ACCESS_NUMBER" {
		c.logger.Warnf("Provider refused number request: %s", resp)
		return nil, models.ErrProviderUnavailable
	}

	return &ProviderOrder{
		OrderID: parts[1],
		Number:  parts[2],
	}, nil
}

func (c *smsProviderClient) CheckMessages(ctx context.Context, orderID string) (string, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("action", "getStatus")
	params.Set("id", orderID)

	resp, err := c.makeRequest(ctx, params)
	if err != nil {
		return "", models.ErrProviderUnavailable
	}

	if resp == "STATUS_WAIT_CODE" {
		return "", models.ErrCodeNotReady
	}

	if strings.HasPrefix(resp, "STATUS_OK:") {
		full := strings.TrimPrefix(resp, "STATUS_OK:")
		return c.extractCode(full), nil
	}

	if strings.HasPrefix(resp, "STATUS_CANCEL") {
		return "", models.ErrProviderUnavailable
	}

	return "", fmt.Errorf("unexpected provider status: %s", resp)
}

// Finish releases the reservation after a code has been received. Callers
// treat it as best-effort but must always attempt it: a skipped finish leaks
// the reservation on the provider side.
func (c *smsProviderClient) Finish(ctx context.Context, orderID string) error {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("action", "setStatus")
	params.Set("id", orderID)
	params.Set("status", "6") // Activation complete

	resp, err := c.makeRequest(ctx, params)
	if err != nil {
		return models.ErrProviderUnavailable
	}

	if !strings.HasPrefix(resp, "ACCESS_") {
		return fmt.Errorf("failed to finish order: %s", resp)
	}

	return nil
}

func (c *smsProviderClient) GetBalance(ctx context.Context) (float64, string, error) {
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("action", "getBalance")

	resp, err := c.makeRequest(ctx, params)
	if err != nil {
		return 0, "", models.ErrProviderUnavailable
	}

	if strings.HasPrefix(resp, "ACCESS_BALANCE:") {
		balance, err := strconv.ParseFloat(strings.TrimPrefix(resp, "ACCESS_BALANCE:"), 64)
		if err != nil {
			return 0, "", err
		}
		return balance, "RUB", nil
	}

	return 0, "", fmt.Errorf("failed to get balance: %s", resp)
}

func (c *smsProviderClient) makeRequest(ctx context.Context, params url.Values) (string, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}

func (c *smsProviderClient) mapService(service string) string {
	serviceMap := map[string]string{
		"whatsapp":  "wa",
		"telegram":  "tg",
		"google":    "go",
		"facebook":  "fb",
		"instagram": "ig",
		"other":     "ot",
	}

	if code, ok := serviceMap[strings.ToLower(service)]; ok {
		return code
	}
	return "ot"
}

func (c *smsProviderClient) mapCountry(country string) string {
	countryMap := map[string]string{
		"US": "0",
		"RU": "1",
		"KZ": "2",
		"CN": "3",
		"PH": "4",
		"ID": "6",
		"MY": "7",
		"VN": "10",
		"GB": "16",
		"IN": "22",
		"UA": "46",
	}

	if code, ok := countryMap[strings.ToUpper(country)]; ok {
		return code
	}
	return "0"
}

func (c *smsProviderClient) extractCode(fullSMS string) string {
	// Pull the first 4-8 digit token out of the SMS body.
	parts := strings.Fields(fullSMS)
	for _, part := range parts {
		if len(part) >= 4 && len(part) <= 8 {
			if _, err := strconv.Atoi(part); err == nil {
				return part
			}
		}
	}
	return fullSMS
}
