package query

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/siemql/siemql/internal/pkg/logger"
)

const testLexicon = `
entities:
  - name: svc-backup
    label: PRODUCT
    aliases: [backup service, backup]
  - name: jdoe
    aliases: ["John Doe"]
`

func TestParseLexicon(t *testing.T) {
	lt, err := ParseLexicon([]byte(testLexicon))
	if err != nil {
		t.Fatalf("ParseLexicon() error = %v", err)
	}
	if lt.Len() != 2 {
		t.Errorf("Len() = %d, want 2", lt.Len())
	}
	if lt.Name() != "lexicon" {
		t.Errorf("Name() = %q", lt.Name())
	}
}

func TestLexiconTagger_Tag(t *testing.T) {
	lt, err := ParseLexicon([]byte(testLexicon))
	if err != nil {
		t.Fatalf("ParseLexicon() error = %v", err)
	}

	tests := []struct {
		name string
		text string
		want []Span
	}{
		{
			name: "alias and canonical name",
			text: "John Doe restarted the Backup Service",
			want: []Span{
				{Text: "jdoe", Label: LabelPerson, Start: 0, End: 8},
				{Text: "svc-backup", Label: LabelProduct, Start: 23, End: 37},
			},
		},
		{
			name: "canonical form",
			text: "jdoe",
			want: []Span{{Text: "jdoe", Label: LabelPerson, Start: 0, End: 4}},
		},
		{
			name: "whole words only",
			text: "backups ran overnight",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lt.Tag(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Tag() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tag() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewLexiconTagger_RequiresName(t *testing.T) {
	_, err := NewLexiconTagger([]LexiconEntry{{Name: "  ", Aliases: []string{"x"}}})
	if err == nil {
		t.Error("expected error for entry without name")
	}
}

func TestLoadLexicon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexicon.yaml")
	if err := os.WriteFile(path, []byte(testLexicon), 0o644); err != nil {
		t.Fatal(err)
	}

	lt, err := LoadLexicon(path)
	if err != nil {
		t.Fatalf("LoadLexicon() error = %v", err)
	}
	if lt.Len() != 2 {
		t.Errorf("Len() = %d, want 2", lt.Len())
	}

	if _, err := LoadLexicon(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadLexicon(missing) returned no error")
	}
}

func TestExtractor_WithLexicon(t *testing.T) {
	lt, err := ParseLexicon([]byte(testLexicon))
	if err != nil {
		t.Fatal(err)
	}
	ex := NewExtractor(lt, logger.Default())

	got := ex.Extract(context.Background(), "failed login by jdoe and the backup service")

	want := []string{"jdoe", "svc-backup"}
	if !reflect.DeepEqual(got.Users, want) {
		t.Errorf("Users = %v, want %v", got.Users, want)
	}
	if !got.UsedTagger {
		t.Error("UsedTagger = false")
	}
}
