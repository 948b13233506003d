package qrcode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

const (
	defaultBaseURL             = "https://api.qrserver.com/v1/create-qr-code/"
	DefaultSize                = 255
	maxImageBytes        int64 = 2 << 20
	errorBodyReadLimit   int64 = 1024
	pngSignature               = "\x89PNG\r\n\x1a\n"
	defaultClientTimeout       = 10 * time.Second
)

// Client fetches QR code images from a qrserver compatible HTTP endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the QR service endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// NewClient builds a QR image client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// uriComponent restores the marks encodeURIComponent leaves unescaped and
// url.QueryEscape does not.
var uriComponent = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeData percent-encodes data the way encodeURIComponent does.
func EncodeData(data string) string {
	return uriComponent.Replace(url.QueryEscape(data))
}

// ImageURL builds the GET url for a size x size image of data.
func (c *Client) ImageURL(data string, size int) string {
	if size <= 0 {
		size = DefaultSize
	}
	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%ssize=%dx%d&data=%s", c.baseURL, sep, size, size, EncodeData(data))
}

// PNG downloads the QR image for data.
func (c *Client) PNG(ctx context.Context, data string, size int) ([]byte, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeExternalService, "qr code client not configured")
	}
	if strings.TrimSpace(data) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qr code data is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ImageURL(data, size), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "build qr code request")
	}
	req.Header.Set("Accept", "image/png")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "execute qr code request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalService, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "qr code request failed")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeExternalService, err, "read qr code image")
	}
	if !bytes.HasPrefix(body, []byte(pngSignature)) {
		return nil, pkgerrors.New(pkgerrors.CodeExternalService, "qr code response is not a png").
			WithDetails(map[string]any{"content_type": resp.Header.Get("Content-Type")})
	}
	return body, nil
}
