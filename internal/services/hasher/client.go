package hasher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hashreview/internal/services"
)

const defaultHTTPTimeout = 15 * time.Second

// Config captures the runtime settings required to talk to the hashing
// service.
type Config struct {
	BaseURL        string
	TimeoutSeconds int
}

// Client wraps the hashing/matching HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a hashing-service client using the supplied
// configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// AlgorithmResult is one algorithm's comparison outcome. Distance keeps the
// service's sentinel values (-1 for "known different") untouched.
type AlgorithmResult struct {
	Distance       float64 `json:"distance"`
	Quality1       float64 `json:"quality1"`
	Quality2       float64 `json:"quality2"`
	Interpretation string  `json:"interpretation"`
	Error          string  `json:"error,omitempty"`
}

// CompareResult is the /compare response envelope.
type CompareResult struct {
	Success bool                       `json:"success"`
	Results map[string]AlgorithmResult `json:"results"`
	Error   string                     `json:"error,omitempty"`
}

// Compare submits two images and returns per-algorithm distances.
func (c *Client) Compare(ctx context.Context, image1, image2 []byte) (*CompareResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, part := range []struct {
		field string
		data  []byte
	}{
		{"image1", image1},
		{"image2", image2},
	} {
		if len(part.data) == 0 {
			return nil, services.Wrap(services.ErrValidation, "hasher", "compare", part.field+" is required", nil)
		}
		fw, err := writer.CreateFormFile(part.field, part.field+".jpg")
		if err != nil {
			return nil, fmt.Errorf("hasher compare: build form: %w", err)
		}
		if _, err := fw.Write(part.data); err != nil {
			return nil, fmt.Errorf("hasher compare: write form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("hasher compare: close form: %w", err)
	}

	var result CompareResult
	if err := c.postMultipart(ctx, "/compare", writer.FormDataContentType(), body, &result); err != nil {
		return nil, err
	}
	if !result.Success && result.Error != "" {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "hasher", "compare", result.Error, nil)
	}
	return &result, nil
}

// Probe identifies the content being searched for. Exactly one field must be
// set.
type Probe struct {
	Image       []byte
	Base64Image string
	HashValue   string
}

func (p Probe) validate() error {
	set := 0
	if len(p.Image) > 0 {
		set++
	}
	if strings.TrimSpace(p.Base64Image) != "" {
		set++
	}
	if strings.TrimSpace(p.HashValue) != "" {
		set++
	}
	if set == 0 {
		return services.Wrap(services.ErrValidation, "hasher", "find nearest", "one of image, base64_image, or hash_value is required", nil)
	}
	if set > 1 {
		return services.Wrap(services.ErrValidation, "hasher", "find nearest", "only one of image, base64_image, or hash_value may be set", nil)
	}
	return nil
}

// NearestMatch is one /find_nearest hit.
type NearestMatch struct {
	ID       string            `json:"id"`
	Distance float64           `json:"distance"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type findNearestResponse struct {
	Matches []NearestMatch `json:"matches"`
}

// FindNearest searches the service-side index for entries near the probe.
// Algorithm and threshold are optional; the service applies its defaults when
// they are zero-valued.
func (c *Client) FindNearest(ctx context.Context, probe Probe, algorithm string, threshold float64) ([]NearestMatch, error) {
	if err := probe.validate(); err != nil {
		return nil, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	switch {
	case len(probe.Image) > 0:
		fw, err := writer.CreateFormFile("image", "probe.jpg")
		if err != nil {
			return nil, fmt.Errorf("hasher find nearest: build form: %w", err)
		}
		if _, err := fw.Write(probe.Image); err != nil {
			return nil, fmt.Errorf("hasher find nearest: write form: %w", err)
		}
	case strings.TrimSpace(probe.Base64Image) != "":
		if err := writer.WriteField("base64_image", strings.TrimSpace(probe.Base64Image)); err != nil {
			return nil, fmt.Errorf("hasher find nearest: write form: %w", err)
		}
	default:
		if err := writer.WriteField("hash_value", strings.TrimSpace(probe.HashValue)); err != nil {
			return nil, fmt.Errorf("hasher find nearest: write form: %w", err)
		}
	}
	if algorithm = strings.TrimSpace(algorithm); algorithm != "" {
		if err := writer.WriteField("algorithm", algorithm); err != nil {
			return nil, fmt.Errorf("hasher find nearest: write form: %w", err)
		}
	}
	if threshold > 0 {
		if err := writer.WriteField("threshold", strconv.FormatFloat(threshold, 'f', -1, 64)); err != nil {
			return nil, fmt.Errorf("hasher find nearest: write form: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("hasher find nearest: close form: %w", err)
	}

	var result findNearestResponse
	if err := c.postMultipart(ctx, "/find_nearest", writer.FormDataContentType(), body, &result); err != nil {
		return nil, err
	}
	return result.Matches, nil
}

// RandomHash is the /random_hash response: a fingerprint sampled from the
// service's index, used to seed random-probe flows.
type RandomHash struct {
	Hash      string `json:"hash"`
	ImagePath string `json:"image_path,omitempty"`
}

// RandomHash fetches a random indexed fingerprint from the service.
func (c *Client) RandomHash(ctx context.Context) (*RandomHash, error) {
	var result RandomHash
	if err := c.getJSON(ctx, "/random_hash", nil, &result); err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Hash) == "" {
		return nil, services.Wrap(services.ErrNotFound, "hasher", "random hash", "service has no indexed hashes", nil)
	}
	return &result, nil
}

// SimilarImage is one /similarity-search hit.
type SimilarImage struct {
	ID         string            `json:"id"`
	Filename   string            `json:"filename"`
	UploadDate string            `json:"upload_date"`
	Distance   float64           `json:"distance"`
	Hashes     map[string]string `json:"hashes,omitempty"`
}

type similaritySearchResponse struct {
	Success bool           `json:"success"`
	Results []SimilarImage `json:"results"`
	Error   string         `json:"error,omitempty"`
}

// SimilaritySearch runs a hash-type-scoped search over the service's uploaded
// images. A non-empty image is sent as a multipart probe; the service then
// searches around that image instead of its whole collection.
func (c *Client) SimilaritySearch(ctx context.Context, hashType string, threshold float64, image []byte) ([]SimilarImage, error) {
	query := url.Values{}
	if hashType = strings.TrimSpace(hashType); hashType != "" {
		query.Set("hash_type", hashType)
	}
	if threshold > 0 {
		query.Set("threshold", strconv.FormatFloat(threshold, 'f', -1, 64))
	}

	var result similaritySearchResponse
	if len(image) > 0 {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		fw, err := writer.CreateFormFile("image", "probe.jpg")
		if err != nil {
			return nil, fmt.Errorf("hasher similarity search: build form: %w", err)
		}
		if _, err := fw.Write(image); err != nil {
			return nil, fmt.Errorf("hasher similarity search: write form: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("hasher similarity search: close form: %w", err)
		}
		if err := c.getMultipart(ctx, "/similarity-search", query, writer.FormDataContentType(), body, &result); err != nil {
			return nil, err
		}
	} else if err := c.getJSON(ctx, "/similarity-search", query, &result); err != nil {
		return nil, err
	}
	if !result.Success && result.Error != "" {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "hasher", "similarity search", result.Error, nil)
	}
	return result.Results, nil
}

// Healthy reports whether the service answers at all. Used to decide demo
// fallback before a review session starts.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.RandomHash(ctx)
	return err == nil || !errors.Is(err, services.ErrUpstreamUnavailable)
}

func (c *Client) postMultipart(ctx context.Context, path, contentType string, body io.Reader, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("hasher request: new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, path, target)
}

func (c *Client) getMultipart(ctx context.Context, path string, query url.Values, contentType string, body io.Reader, target any) error {
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, body)
	if err != nil {
		return fmt.Errorf("hasher request: new request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	return c.do(req, path, target)
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, target any) error {
	endpoint := c.cfg.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("hasher request: new request: %w", err)
	}
	return c.do(req, path, target)
}

func (c *Client) do(req *http.Request, path string, target any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrUpstreamUnavailable, "hasher", path, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return services.Wrap(services.ErrUpstreamUnavailable, "hasher", path, "read response", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return services.Wrap(services.ErrNotFound, "hasher", path, strings.TrimSpace(string(raw)), nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return services.Wrap(services.ErrUpstreamUnavailable, "hasher", path,
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return services.Wrap(services.ErrUpstreamUnavailable, "hasher", path, "decode response", err)
	}
	return nil
}
