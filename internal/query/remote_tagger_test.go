package query

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/siemql/siemql/internal/config"
	apperrors "github.com/siemql/siemql/internal/pkg/errors"
	"github.com/siemql/siemql/internal/pkg/logger"
)

func newNERServer(t *testing.T, healthy bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ner", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req nerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(nerResponse{Ents: []Span{
			{Text: "Alice", Label: LabelPerson, Start: 0, End: 5},
			{Text: "Paris", Label: "GPE", Start: 15, End: 20},
		}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteTagger_Tag(t *testing.T) {
	srv := newNERServer(t, true)
	rt := NewRemoteTagger(RemoteTaggerConfig{URL: srv.URL + "/"})

	spans, err := rt.Tag(context.Background(), "Alice logged in Paris")
	if err != nil {
		t.Fatalf("Tag() error = %v", err)
	}

	want := []Span{
		{Text: "Alice", Label: LabelPerson, Start: 0, End: 5},
		{Text: "Paris", Label: "GPE", Start: 15, End: 20},
	}
	if !reflect.DeepEqual(spans, want) {
		t.Errorf("Tag() = %+v, want %+v", spans, want)
	}
}

func TestRemoteTagger_TagHTTPError(t *testing.T) {
	srv := newNERServer(t, true)
	rt := NewRemoteTagger(RemoteTaggerConfig{URL: srv.URL})

	_, err := rt.Tag(context.Background(), "")
	if !apperrors.IsCode(err, apperrors.CodeTransport) {
		t.Errorf("Tag() error = %v, want %s", err, apperrors.CodeTransport)
	}
}

func TestRemoteTagger_Probe(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := newNERServer(t, true)
		if err := NewRemoteTagger(RemoteTaggerConfig{URL: srv.URL}).Probe(context.Background()); err != nil {
			t.Errorf("Probe() error = %v", err)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv := newNERServer(t, false)
		err := NewRemoteTagger(RemoteTaggerConfig{URL: srv.URL}).Probe(context.Background())
		if !apperrors.IsCode(err, apperrors.CodeProbe) {
			t.Errorf("Probe() error = %v, want %s", err, apperrors.CodeProbe)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		err := NewRemoteTagger(RemoteTaggerConfig{URL: url, Timeout: time.Second}).Probe(context.Background())
		if !apperrors.IsCode(err, apperrors.CodeProbe) {
			t.Errorf("Probe() error = %v, want %s", err, apperrors.CodeProbe)
		}
	})
}

func TestNewTagger(t *testing.T) {
	log := logger.Default()
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		tg, err := NewTagger(ctx, config.TaggerConfig{Type: "none"}, log)
		if err != nil || tg != nil {
			t.Errorf("NewTagger(none) = %v, %v; want nil, nil", tg, err)
		}
	})

	t.Run("lexicon", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lex.yaml")
		if err := os.WriteFile(path, []byte(testLexicon), 0o644); err != nil {
			t.Fatal(err)
		}
		tg, err := NewTagger(ctx, config.TaggerConfig{Type: "lexicon", LexiconPath: path}, log)
		if err != nil {
			t.Fatalf("NewTagger(lexicon) error = %v", err)
		}
		if tg.Name() != "lexicon" {
			t.Errorf("Name() = %q", tg.Name())
		}
	})

	t.Run("remote healthy", func(t *testing.T) {
		srv := newNERServer(t, true)
		tg, err := NewTagger(ctx, config.TaggerConfig{Type: "remote", URL: srv.URL, Timeout: time.Second}, log)
		if err != nil {
			t.Fatalf("NewTagger(remote) error = %v", err)
		}
		if tg.Name() != "remote" {
			t.Errorf("Name() = %q", tg.Name())
		}
	})

	t.Run("remote probe failure", func(t *testing.T) {
		srv := newNERServer(t, false)
		_, err := NewTagger(ctx, config.TaggerConfig{Type: "remote", URL: srv.URL}, log)
		if !apperrors.IsCode(err, apperrors.CodeProbe) {
			t.Errorf("NewTagger(remote) error = %v, want %s", err, apperrors.CodeProbe)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := NewTagger(ctx, config.TaggerConfig{Type: "spacy"}, log); err == nil {
			t.Error("expected error for unknown tagger type")
		}
	})
}
