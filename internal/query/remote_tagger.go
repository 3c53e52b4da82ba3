package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/siemql/siemql/internal/pkg/errors"
)

// RemoteTaggerConfig configures a RemoteTagger.
type RemoteTaggerConfig struct {
	// URL is the base URL of the NER service.
	URL string

	// Timeout bounds each request.
	Timeout time.Duration
}

// RemoteTagger calls an HTTP named-entity recognition service:
//
//	POST {URL}/ner  {"text": "..."}  ->  {"ents": [{"text","label","start","end"}]}
//	GET  {URL}/health                ->  200 when the model is loaded
type RemoteTagger struct {
	baseURL    string
	httpClient *http.Client
}

type nerRequest struct {
	Text string `json:"text"`
}

type nerResponse struct {
	Ents []Span `json:"ents"`
}

// NewRemoteTagger creates a remote tagger. It does not contact the service;
// call Probe for that.
func NewRemoteTagger(cfg RemoteTaggerConfig) *RemoteTagger {
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &RemoteTagger{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name implements EntityTagger.
func (t *RemoteTagger) Name() string { return "remote" }

// Probe checks that the service is up. Failure is a PROBE_ERROR.
func (t *RemoteTagger) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return apperrors.ProbeError("entity tagger", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return apperrors.ProbeError("entity tagger", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return apperrors.ProbeError("entity tagger", fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	return nil
}

// Tag implements EntityTagger.
func (t *RemoteTagger) Tag(ctx context.Context, text string) ([]Span, error) {
	body, err := json.Marshal(nerRequest{Text: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/ner", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.TransportError("entity tagger request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, apperrors.TransportError("entity tagger request failed",
			fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var out nerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding tagger response: %w", err)
	}
	return out.Ents, nil
}
