package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadAssignsStableChunkIDs(t *testing.T) {
	docs := []Document{
		{SourceID: "pricing.md", Text: "Basic costs $29 per month.\n\nPro costs $79 per month."},
		{SourceID: "features.md", Text: "AutoStream edits videos automatically."},
	}
	store := Load(docs, 1000, 200)

	chunks := store.AllChunks()
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if chunks[0].ID != "pricing.md#000" {
		t.Fatalf("chunks[0].ID = %q, want %q", chunks[0].ID, "pricing.md#000")
	}
	if chunks[1].SourceDocument != "features.md" {
		t.Fatalf("chunks[1].SourceDocument = %q, want %q", chunks[1].SourceDocument, "features.md")
	}
}

func TestLoadEmptyCorpus(t *testing.T) {
	store := Load(nil, 1000, 200)
	if store.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", store.Len())
	}
	if chunks := store.AllChunks(); len(chunks) != 0 {
		t.Fatalf("AllChunks() = %v, want empty", chunks)
	}
}

func TestSplitTextRespectsSizeAndOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Paragraph about video editing features and pricing details.\n\n")
	}
	parts := splitText(b.String(), 200, 50)

	if len(parts) < 2 {
		t.Fatalf("len(parts) = %d, want at least 2", len(parts))
	}
	for i, p := range parts {
		if len([]rune(p)) > 200 {
			t.Fatalf("parts[%d] length = %d, want <= 200", i, len([]rune(p)))
		}
		if strings.TrimSpace(p) == "" {
			t.Fatalf("parts[%d] is blank", i)
		}
	}
}

func TestSplitTextShortInput(t *testing.T) {
	parts := splitText("short text", 1000, 200)
	if len(parts) != 1 || parts[0] != "short text" {
		t.Fatalf("splitText() = %v, want single unchanged chunk", parts)
	}
}

func TestLoadDirReadsMarkdownSorted(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b_features.md": "feature text",
		"a_pricing.md":  "pricing text",
		"notes.txt":     "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	docs, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("len(docs) = %d, want 2", len(docs))
	}
	if docs[0].SourceID != "a_pricing.md" || docs[1].SourceID != "b_features.md" {
		t.Fatalf("docs order = [%s %s], want lexical", docs[0].SourceID, docs[1].SourceID)
	}
}

func TestLoadDirMissingDirectory(t *testing.T) {
	docs, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("LoadDir() error = %v, want nil for missing dir", err)
	}
	if docs != nil {
		t.Fatalf("docs = %v, want nil", docs)
	}
}
