package gcs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/labaccess-backend/pkg/config"
	"github.com/angelmondragon/labaccess-backend/pkg/google"
	"github.com/angelmondragon/labaccess-backend/pkg/logger"
)

const (
	defaultEndpoint = "https://storage.googleapis.com"
	pingTimeout     = 5 * time.Second
	errorBodyLimit  = 2048
)

// Client talks to the Cloud Storage JSON API with an authorized HTTP client.
type Client struct {
	httpClient    *http.Client
	endpoint      string
	defaultBucket string
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Object describes an uploaded object.
type Object struct {
	Bucket    string            `json:"bucket"`
	Name      string            `json:"name"`
	MediaLink string            `json:"mediaLink"`
	SelfLink  string            `json:"selfLink"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewClient builds a storage client for the configured bucket and verifies access.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	httpClient, err := google.HTTPClient(ctx, gcp, "", google.ScopeStorage)
	if err != nil {
		return nil, fmt.Errorf("building gcs http client: %w", err)
	}

	client := newClientWithHTTP(httpClient, defaultEndpoint, cfg.BucketName)
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}

	return client, nil
}

func newClientWithHTTP(httpClient *http.Client, endpoint, bucket string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		httpClient:    httpClient,
		endpoint:      strings.TrimRight(endpoint, "/"),
		defaultBucket: bucket,
	}
}

func (c *Client) BucketHandle(name string) *Bucket {
	if c == nil {
		return nil
	}
	if name == "" {
		name = c.defaultBucket
	}
	return &Bucket{name: name, client: c}
}

func (c *Client) DefaultBucket() string {
	if c == nil {
		return ""
	}
	return c.defaultBucket
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.httpClient == nil {
		return errors.New("gcs client not initialized")
	}
	if c.defaultBucket == "" {
		return errors.New("gcs bucket not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/storage/v1/b/%s/o?maxResults=1", c.endpoint, url.PathEscape(c.defaultBucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError("gcs object check failed", resp)
	}
	return nil
}

// Upload writes data as a single multipart request, attaching metadata to the object.
func (c *Client) Upload(ctx context.Context, bucket, name, contentType string, data []byte, metadata map[string]string) (*Object, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("gcs client not initialized")
	}
	if bucket == "" {
		bucket = c.defaultBucket
	}
	if bucket == "" || strings.TrimSpace(name) == "" {
		return nil, errors.New("bucket and object name are required")
	}

	body, boundary, err := multipartBody(name, contentType, data, metadata)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?uploadType=multipart", c.endpoint, url.PathEscape(bucket))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "multipart/related; boundary="+boundary)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("gcs upload failed", resp)
	}

	var obj Object
	if err := json.NewDecoder(resp.Body).Decode(&obj); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &obj, nil
}

func multipartBody(name, contentType string, data []byte, metadata map[string]string) (*bytes.Buffer, string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	meta, err := json.Marshal(map[string]any{
		"name":        name,
		"contentType": contentType,
		"metadata":    metadata,
	})
	if err != nil {
		return nil, "", err
	}

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	metaPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/json; charset=UTF-8"}})
	if err != nil {
		return nil, "", err
	}
	if _, err := metaPart.Write(meta); err != nil {
		return nil, "", err
	}

	dataPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType}})
	if err != nil {
		return nil, "", err
	}
	if _, err := dataPart.Write(data); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf, mw.Boundary(), nil
}

func statusError(prefix string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if len(b) > 0 {
		return fmt.Errorf("%s: %s: %s", prefix, resp.Status, strings.TrimSpace(string(b)))
	}
	return fmt.Errorf("%s: %s", prefix, resp.Status)
}

type Bucket struct {
	name   string
	client *Client
}

func (b *Bucket) Name() string {
	return b.name
}

// Upload stores data in this bucket.
func (b *Bucket) Upload(ctx context.Context, name, contentType string, data []byte, metadata map[string]string) (*Object, error) {
	return b.client.Upload(ctx, b.name, name, contentType, data, metadata)
}
