// Package knowledge maintains a local full-text index over a documents
// directory. It backs the rag tool: queries return scored snippets with
// their source paths for citation.
package knowledge

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	gitignore "github.com/sabhiram/go-gitignore"
)

// Snippet is one retrieval hit.
type Snippet struct {
	Path  string  `json:"path"`  // Relative path from the docs root
	Title string  `json:"title"` // First heading or file name
	Text  string  `json:"text"`  // Matching document excerpt
	Score float64 `json:"score"` // Relevance score
}

// Index wraps a bleve index over a docs directory.
type Index struct {
	docsRoot string
	index    bleve.Index
	ignore   gitignore.IgnoreParser
}

const (
	ignoreFileName = ".kaiignore"
	maxDocBytes    = 512 * 1024
	snippetRunes   = 600
)

// Open opens (or creates) the index at indexPath for docsRoot.
func Open(indexPath, docsRoot string) (*Index, error) {
	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(indexPath, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge index: %w", err)
	}

	return &Index{
		docsRoot: docsRoot,
		index:    index,
		ignore:   loadIgnore(docsRoot),
	}, nil
}

func buildMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()

	pathField := bleve.NewTextFieldMapping()
	pathField.Store = true
	pathField.Index = false
	docMapping.AddFieldMappingsAt("path", pathField)

	titleField := bleve.NewTextFieldMapping()
	titleField.Store = true
	docMapping.AddFieldMappingsAt("title", titleField)

	textField := bleve.NewTextFieldMapping()
	textField.Store = true
	docMapping.AddFieldMappingsAt("text", textField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// loadIgnore compiles the docs dir's ignore file, if present.
func loadIgnore(docsRoot string) gitignore.IgnoreParser {
	path := filepath.Join(docsRoot, ignoreFileName)
	matcher, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		// No ignore file is the common case
		return gitignore.CompileIgnoreLines()
	}
	return matcher
}

// Reindex walks the docs root and (re)indexes every readable text file.
func (ix *Index) Reindex(ctx context.Context) error {
	return filepath.WalkDir(ix.docsRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != ix.docsRoot {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(ix.docsRoot, path)
		if err != nil {
			return nil
		}
		if ix.ignore != nil && ix.ignore.MatchesPath(rel) {
			return nil
		}
		if !isTextFile(path) {
			return nil
		}

		if err := ix.IndexFile(rel); err != nil {
			log.Printf("[knowledge] failed to index %s: %v", rel, err)
		}
		return nil
	})
}

// IndexFile indexes a single document by its path relative to docsRoot.
func (ix *Index) IndexFile(rel string) error {
	data, err := os.ReadFile(filepath.Join(ix.docsRoot, rel))
	if err != nil {
		return err
	}
	if len(data) > maxDocBytes {
		data = data[:maxDocBytes]
	}

	text := string(data)
	doc := map[string]any{
		"path":  rel,
		"title": titleOf(rel, text),
		"text":  text,
	}
	return ix.index.Index(rel, doc)
}

// Remove deletes a document from the index.
func (ix *Index) Remove(rel string) error {
	return ix.index.Delete(rel)
}

// Search returns the top k snippets matching the query.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Snippet, error) {
	if k <= 0 {
		k = 5
	}

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = k
	req.Fields = []string{"path", "title", "text"}

	result, err := ix.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}

	snippets := make([]Snippet, 0, len(result.Hits))
	for _, hit := range result.Hits {
		s := Snippet{Path: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields["title"].(string); ok {
			s.Title = v
		}
		if v, ok := hit.Fields["text"].(string); ok {
			s.Text = truncateRunes(v, snippetRunes)
		}
		snippets = append(snippets, s)
	}
	return snippets, nil
}

// Close releases the underlying index.
func (ix *Index) Close() error {
	return ix.index.Close()
}

// DocsRoot returns the indexed directory.
func (ix *Index) DocsRoot() string { return ix.docsRoot }

func titleOf(rel, text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "#") {
			return strings.TrimSpace(strings.TrimLeft(line, "#"))
		}
		if line != "" {
			break
		}
	}
	return filepath.Base(rel)
}

func isTextFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt", ".rst", ".csv", ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
