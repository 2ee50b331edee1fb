package knowledge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()

	docsRoot := t.TempDir()
	docs := map[string]string{
		"cells/21700.md": "# 21700 cells\nThe Samsung 50E is a 21700 cell with 4.9Ah nominal capacity.",
		"cells/18650.md": "# 18650 cells\nClassic form factor, up to 3.5Ah.",
		"notes.txt":      "Pack sizing notes: prefer nickel strips over wires.",
		"image.png":      "not text",
	}
	for rel, content := range docs {
		path := filepath.Join(docsRoot, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	ix, err := Open(filepath.Join(t.TempDir(), "index.bleve"), docsRoot)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { ix.Close() })

	if err := ix.Reindex(context.Background()); err != nil {
		t.Fatalf("Reindex() error = %v", err)
	}
	return ix
}

func TestSearchFindsDocument(t *testing.T) {
	ix := newTestIndex(t)

	hits, err := ix.Search(context.Background(), "samsung 50e capacity", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits for indexed content")
	}
	if hits[0].Path != "cells/21700.md" {
		t.Errorf("top hit = %q", hits[0].Path)
	}
	if hits[0].Title != "21700 cells" {
		t.Errorf("title = %q", hits[0].Title)
	}
}

func TestReindexSkipsBinaries(t *testing.T) {
	ix := newTestIndex(t)

	hits, err := ix.Search(context.Background(), "png", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, h := range hits {
		if h.Path == "image.png" {
			t.Error("non-text file must not be indexed")
		}
	}
}

func TestRemove(t *testing.T) {
	ix := newTestIndex(t)

	if err := ix.Remove("notes.txt"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	hits, err := ix.Search(context.Background(), "nickel strips", 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.Path == "notes.txt" {
			t.Error("removed document still in index")
		}
	}
}
