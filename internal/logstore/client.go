// Package logstore is an HTTP client for an Elasticsearch-compatible log
// store: version probe, index provisioning, document insert and search.
package logstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/valyala/fastjson"

	"github.com/siemql/siemql/internal/config"
	"github.com/siemql/siemql/internal/planner"
	apperrors "github.com/siemql/siemql/internal/pkg/errors"
	"github.com/siemql/siemql/internal/pkg/logger"
	"github.com/siemql/siemql/internal/pkg/security"
)

// TimestampField is the document field filled on insert when absent.
const TimestampField = "@timestamp"

// Supported server major versions.
var supportedMajors = map[int]bool{7: true, 8: true}

// Config configures the client.
type Config struct {
	// URL is the base URL of the log store.
	URL string

	Username string
	Password string

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// FallbackMajor is used when the version probe fails.
	FallbackMajor int

	// ProbeTimeout bounds the version probe.
	ProbeTimeout time.Duration

	// MetadataTimeout bounds index checks, index creation and inserts.
	MetadataTimeout time.Duration

	// SearchTimeout bounds _search calls.
	SearchTimeout time.Duration

	// Compress gzips request bodies.
	Compress bool

	// MaxIdleConns controls the maximum number of idle (keep-alive) connections.
	MaxIdleConns int

	// MaxConnsPerHost limits the total number of connections per host.
	MaxConnsPerHost int

	// IdleConnTimeout is how long an idle connection stays open.
	IdleConnTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:                "https://localhost:9200",
		Username:           "elastic",
		InsecureSkipVerify: true,
		FallbackMajor:      8,
		ProbeTimeout:       3 * time.Second,
		MetadataTimeout:    10 * time.Second,
		SearchTimeout:      30 * time.Second,
		MaxIdleConns:       100,
		MaxConnsPerHost:    100,
		IdleConnTimeout:    90 * time.Second,
	}
}

// ConfigFrom builds a client Config from application settings.
func ConfigFrom(lc config.LogStoreConfig) Config {
	cfg := DefaultConfig()
	cfg.URL = lc.URL
	cfg.Username = lc.Username
	cfg.Password = lc.Password
	cfg.InsecureSkipVerify = lc.InsecureSkipVerify
	cfg.FallbackMajor = lc.FallbackMajor
	cfg.ProbeTimeout = lc.ProbeTimeout
	cfg.MetadataTimeout = lc.MetadataTimeout
	cfg.SearchTimeout = lc.SearchTimeout
	cfg.Compress = lc.Compress
	return cfg
}

// Document is a log record to insert.
type Document map[string]any

// InsertResult is the server's answer to an insert.
type InsertResult struct {
	ID        string `json:"_id"`
	Index     string `json:"_index"`
	Result    string `json:"result"`
	Timestamp string `json:"@timestamp"`
}

// Client talks to the log store over HTTP.
type Client struct {
	baseURL    string
	cfg        Config
	httpClient *http.Client
	log        *logger.Logger
	parsers    fastjson.ParserPool
	major      atomic.Int32
	now        func() time.Time
}

// New creates a client. It does not contact the server; call Connect.
func New(cfg Config, log *logger.Logger) *Client {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.FallbackMajor == 0 {
		cfg.FallbackMajor = def.FallbackMajor
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if cfg.MetadataTimeout == 0 {
		cfg.MetadataTimeout = def.MetadataTimeout
	}
	if cfg.SearchTimeout == 0 {
		cfg.SearchTimeout = def.SearchTimeout
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = def.MaxConnsPerHost
	}
	if cfg.IdleConnTimeout == 0 {
		cfg.IdleConnTimeout = def.IdleConnTimeout
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxConnsPerHost / 5,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // self-signed dev clusters
		},
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		cfg:     cfg,
		// Timeouts are applied per call through the request context.
		httpClient: &http.Client{Transport: transport},
		log:        log,
		now:        time.Now,
	}
}

// Major returns the server major version in use, or 0 before Connect.
func (c *Client) Major() int {
	return int(c.major.Load())
}

// ProbeVersion reads version.number from the server root. Only majors 7
// and 8 are accepted; anything else is a PROBE_ERROR.
func (c *Client) ProbeVersion(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return 0, apperrors.ProbeError("server version", err)
	}
	req.Header.Set("Accept", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return 0, apperrors.ProbeError("server version", err)
	}
	if status != http.StatusOK {
		return 0, apperrors.ProbeError("server version", fmt.Errorf("HTTP %d", status))
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return 0, apperrors.ProbeError("server version", err)
	}

	number := string(v.GetStringBytes("version", "number"))
	if number == "" {
		return 0, apperrors.ProbeError("server version", fmt.Errorf("version.number missing"))
	}

	major, err := strconv.Atoi(strings.SplitN(number, ".", 2)[0])
	if err != nil {
		return 0, apperrors.ProbeError("server version", fmt.Errorf("version %q: %w", number, err))
	}
	if !supportedMajors[major] {
		return 0, apperrors.ProbeError("server version", fmt.Errorf("unsupported major version %d", major))
	}
	return major, nil
}

// Connect probes the server version and pins the compatibility Accept header
// to it. When the probe fails the configured fallback major is used and the
// probe error is returned alongside it.
func (c *Client) Connect(ctx context.Context) (int, error) {
	major, err := c.ProbeVersion(ctx)
	if err != nil {
		major = c.cfg.FallbackMajor
		c.log.Warn("Log store version probe failed, using fallback",
			"url", c.baseURL, "fallback_major", major, "error", err)
	} else {
		c.log.Info("Connected to log store", "url", c.baseURL, "major", major)
	}
	c.major.Store(int32(major))
	return major, err
}

// IndexExists reports whether index exists.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.MetadataTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodHead, "/"+url.PathEscape(index), nil)
	if err != nil {
		return false, err
	}

	status, _, err := c.do(req)
	if err != nil {
		return false, apperrors.TransportError("index check failed", err)
	}

	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, apperrors.TransportError("index check failed", fmt.Errorf("HTTP %d", status))
	}
}

// CreateIndex creates index with schema. Any non-2xx answer is an
// INDEX_PROVISIONING_ERROR, except an index that already exists.
func (c *Client) CreateIndex(ctx context.Context, index string, schema Schema) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.MetadataTimeout)
	defer cancel()

	body, err := json.Marshal(schema)
	if err != nil {
		return apperrors.IndexProvisioningError(index, err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, "/"+url.PathEscape(index), body)
	if err != nil {
		return apperrors.IndexProvisioningError(index, err)
	}

	status, respBody, err := c.do(req)
	if err != nil {
		return apperrors.IndexProvisioningError(index, err)
	}

	if status == http.StatusOK || status == http.StatusCreated {
		c.log.Info("Created index", "index", index)
		return nil
	}
	// Lost a creation race with another writer.
	if status == http.StatusBadRequest && bytes.Contains(respBody, []byte("resource_already_exists_exception")) {
		return nil
	}
	return apperrors.IndexProvisioningError(index, fmt.Errorf("HTTP %d: %s", status, truncate(respBody)))
}

// EnsureIndex creates index with DefaultSchema when it does not exist.
func (c *Client) EnsureIndex(ctx context.Context, index string) error {
	exists, err := c.IndexExists(ctx, index)
	if err != nil {
		return apperrors.IndexProvisioningError(index, err)
	}
	if exists {
		return nil
	}
	return c.CreateIndex(ctx, index, DefaultSchema())
}

// InsertDocument ensures the index exists and writes doc. A missing or empty
// @timestamp is set to the current UTC time in RFC3339 with a trailing Z.
// The caller's map is not modified.
func (c *Client) InsertDocument(ctx context.Context, index string, doc Document) (*InsertResult, error) {
	if err := c.EnsureIndex(ctx, index); err != nil {
		return nil, err
	}

	out := make(Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	if ts, ok := out[TimestampField]; !ok || ts == nil || ts == "" {
		out[TimestampField] = c.now().UTC().Format(time.RFC3339)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.MetadataTimeout)
	defer cancel()

	body, err := json.Marshal(out)
	if err != nil {
		return nil, apperrors.InsertError(index, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/"+url.PathEscape(index)+"/_doc", body)
	if err != nil {
		return nil, apperrors.InsertError(index, err)
	}

	status, respBody, err := c.do(req)
	if err != nil {
		return nil, apperrors.InsertError(index, err)
	}
	if status >= 400 {
		return nil, apperrors.InsertError(index, fmt.Errorf("HTTP %d: %s", status, truncate(respBody)))
	}

	result := &InsertResult{Index: index}
	if ts, ok := out[TimestampField].(string); ok {
		result.Timestamp = ts
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)
	if v, err := p.ParseBytes(respBody); err == nil {
		result.ID = string(v.GetStringBytes("_id"))
		result.Result = string(v.GetStringBytes("result"))
		if idx := v.GetStringBytes("_index"); len(idx) > 0 {
			result.Index = string(idx)
		}
	}

	c.log.Debug("Inserted document", "index", result.Index, "id", result.ID)
	return result, nil
}

// Search runs req against index. It never returns a Go error: transport
// failures, non-2xx answers and undecodable bodies come back as a response
// with Error set and no hits.
func (c *Client) Search(ctx context.Context, index string, req *planner.SearchRequest) *SearchResponse {
	body, err := MarshalRequest(req)
	if err != nil {
		return failedResponse("encoding request: %v", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.SearchTimeout)
	defer cancel()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/"+url.PathEscape(index)+"/_search", body)
	if err != nil {
		return failedResponse("%v", err)
	}

	status, respBody, err := c.do(httpReq)
	if err != nil {
		c.log.Warn("Search request failed", "index", index, "error", err)
		return failedResponse("%v", err)
	}
	if status >= 400 {
		c.log.Warn("Search rejected", "index", index, "status", status)
		return failedResponse("HTTP %d: %s", status, truncate(respBody))
	}

	p := c.parsers.Get()
	defer c.parsers.Put(p)

	resp, err := decodeSearchResponse(p, respBody)
	if err != nil {
		return failedResponse("%v", err)
	}
	return resp
}

// newRequest builds a request with auth and content negotiation headers.
func (c *Client) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var reader io.Reader
	compressed := false
	if body != nil {
		if c.cfg.Compress {
			gz, err := gzipBytes(body)
			if err != nil {
				return nil, fmt.Errorf("compressing request: %w", err)
			}
			body = gz
			compressed = true
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.cfg.Username != "" {
		req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	}
	if major := c.Major(); major > 0 {
		req.Header.Set("Accept", fmt.Sprintf("application/vnd.elasticsearch+json; compatible-with=%d", major))
	} else {
		req.Header.Set("Accept", "application/json")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if compressed {
		req.Header.Set("Content-Encoding", "gzip")
	}

	return req, nil
}

// do executes req and returns the status and full body.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	c.log.Debug("Log store request",
		"method", req.Method,
		"path", req.URL.Path,
		"headers", security.MaskSensitiveHeaders(req.Header),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func gzipBytes(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(b []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
