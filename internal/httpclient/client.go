package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"mime/multipart"
	"net/http"
	"net/url"
	"slices"

	"github.com/mp-manager/mp-manager/internal/certificates"
	"github.com/mp-manager/mp-manager/internal/config"
	"github.com/mp-manager/mp-manager/internal/metrics"
	"github.com/mp-manager/mp-manager/internal/otel"
	"github.com/mp-manager/mp-manager/internal/serviceerrors"
)

// Client performs the outbound calls to the data sources. Every call is
// announced with an "Access to <url>" line before it is sent.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

func NewClient(serviceConfig *config.Config, logger *slog.Logger, m *metrics.Metrics) (*Client, error) {
	httpConfig := serviceConfig.HTTP
	if httpConfig == nil {
		httpConfig = &config.HTTPConfig{}
	}
	tlsConfig, err := certificates.TLSConfig(httpConfig, logger)
	if err != nil {
		return nil, err
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	if tlsConfig != nil {
		base.TLSClientConfig = tlsConfig
	}
	var transport http.RoundTripper = base
	if m != nil {
		transport = NewInstrumentedTransport(transport, m)
		logger.Debug("Enabled Prometheus metrics for outbound requests")
	}
	if serviceConfig.IsOTELEnabled() {
		transport = otel.NewRoundTripper(transport)
	}

	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: httpConfig.Timeout},
		logger:     logger,
		userAgent:  httpConfig.UserAgent,
	}, nil
}

// NewClientWithHTTP wraps an existing http.Client, used by tests with httptest servers.
func NewClientWithHTTP(httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{httpClient: httpClient, logger: logger}
}

// Get issues a GET of rawURL with params encoded in the query string.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	target := rawURL
	if len(params) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, serviceerrors.NewNetworkError(rawURL, 0, err)
		}
		q := u.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, serviceerrors.NewNetworkError(rawURL, 0, err)
	}
	return c.do(rawURL, req)
}

// PostMultipart issues a POST of fields as multipart/form-data.
func (c *Client) PostMultipart(ctx context.Context, rawURL string, fields map[string]string) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, key := range slices.Sorted(maps.Keys(fields)) {
		if err := writer.WriteField(key, fields[key]); err != nil {
			return nil, serviceerrors.NewNetworkError(rawURL, 0, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, serviceerrors.NewNetworkError(rawURL, 0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &body)
	if err != nil {
		return nil, serviceerrors.NewNetworkError(rawURL, 0, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.do(rawURL, req)
}

func (c *Client) do(rawURL string, req *http.Request) ([]byte, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	c.logger.Info(fmt.Sprintf("Access to %s", rawURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, serviceerrors.NewNetworkError(rawURL, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, serviceerrors.NewNetworkError(rawURL, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serviceerrors.NewNetworkError(rawURL, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}
	return body, nil
}
