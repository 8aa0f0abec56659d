package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultBaseURL is the Jupiter Lite API endpoint.
	DefaultBaseURL = "https://lite-api.jup.ag/swap/v1"

	// DefaultTimeout is the HTTP request timeout.
	DefaultTimeout = 30 * time.Second
)

// Client is a Jupiter API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string // Optional: for the keyed API tier
}

// ClientConfig contains configuration for the Jupiter client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewClient creates a new Jupiter API client.
func NewClient(config *ClientConfig) *Client {
	if config == nil {
		config = &ClientConfig{}
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     config.APIKey,
	}
}

// Quote fetches an ExactIn swap quote from Jupiter.
func (c *Client) Quote(ctx context.Context, params *QuoteParams) (*QuoteResponse, error) {
	if params.InputMint == "" || params.OutputMint == "" {
		return nil, fmt.Errorf("inputMint and outputMint are required")
	}
	if params.AmountRaw == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	if params.SlippageBps <= 0 {
		return nil, fmt.Errorf("slippageBps must be positive")
	}

	query := url.Values{}
	query.Set("inputMint", params.InputMint)
	query.Set("outputMint", params.OutputMint)
	query.Set("amount", strconv.FormatUint(params.AmountRaw, 10))
	query.Set("slippageBps", strconv.Itoa(params.SlippageBps))
	query.Set("swapMode", "ExactIn")

	requestURL := fmt.Sprintf("%s/quote?%s", c.baseURL, query.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Jupiter API error (status %d): %s", resp.StatusCode, string(body))
	}

	var quoteResp QuoteResponse
	if err := json.Unmarshal(body, &quoteResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Reject shapes that would break integer accounting downstream.
	if _, err := quoteResp.OutAmountRaw(); err != nil {
		return nil, fmt.Errorf("invalid quote: %w", err)
	}
	if quoteResp.OutputMint != params.OutputMint {
		return nil, fmt.Errorf("quote output mint mismatch: want %s, got %s", params.OutputMint, quoteResp.OutputMint)
	}

	return &quoteResp, nil
}

// BuildSwap builds a serialized swap transaction from a quote.
func (c *Client) BuildSwap(ctx context.Context, quote *QuoteResponse, userPublicKey string) (*SwapResponse, error) {
	if quote == nil {
		return nil, fmt.Errorf("quote is required")
	}
	if userPublicKey == "" {
		return nil, fmt.Errorf("userPublicKey is required")
	}

	requestURL := fmt.Sprintf("%s/swap", c.baseURL)

	jsonBody, err := json.Marshal(&swapRequest{
		QuoteResponse:             quote,
		UserPublicKey:             userPublicKey,
		WrapAndUnwrapSol:          true,
		DynamicComputeUnitLimit:   true,
		PrioritizationFeeLamports: "auto",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", requestURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Jupiter API error (status %d): %s", resp.StatusCode, string(body))
	}

	var swapResp SwapResponse
	if err := json.Unmarshal(body, &swapResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if swapResp.SwapTransaction == "" {
		return nil, fmt.Errorf("swap response has no transaction")
	}

	return &swapResp, nil
}
