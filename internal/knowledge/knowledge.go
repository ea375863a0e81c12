// Package knowledge is the basketball knowledge base: web pages crawled into
// markdown chunks, embedded and stored in a vector collection for semantic
// search.
package knowledge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/dotcommander/courtside/internal/logging"
)

// Document is one stored chunk.
type Document struct {
	ID      string
	URL     string
	Title   string
	Content string
	Chunk   int
}

// ScoredDocument is a search hit.
type ScoredDocument struct {
	Document
	Score float64
}

// Contents records which URLs were ingested.
type Contents interface {
	HasContent(ctx context.Context, url string) (bool, error)
	MarkContent(ctx context.Context, url, hash string, chunks int) error
}

// Reader crawls a site into pages.
type Reader interface {
	Read(ctx context.Context, start string) ([]Page, error)
}

// LoadResult summarizes one Load.
type LoadResult struct {
	Pages   int
	Skipped int
	Chunks  int
}

// Base ties the reader, embedder, vector store and contents registry
// together.
type Base struct {
	store     VectorStore
	embedder  Embedder
	contents  Contents
	reader    Reader
	chunkSize int
	log       *logging.Logger
}

// New returns a knowledge base. contents may be nil, which disables
// skip-if-exists.
func New(store VectorStore, embedder Embedder, contents Contents, reader Reader, chunkSize int, log *logging.Logger) *Base {
	return &Base{
		store:     store,
		embedder:  embedder,
		contents:  contents,
		reader:    reader,
		chunkSize: chunkSize,
		log:       logging.OrNop(log),
	}
}

// Close releases the vector store.
func (b *Base) Close() error { return b.store.Close() }

// Load crawls url and indexes every page not ingested before.
func (b *Base) Load(ctx context.Context, url string) (LoadResult, error) {
	var res LoadResult
	pages, err := b.reader.Read(ctx, url)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", url, err)
	}
	for _, p := range pages {
		if b.contents != nil {
			done, err := b.contents.HasContent(ctx, p.URL)
			if err != nil {
				return res, err
			}
			if done {
				res.Skipped++
				b.log.Debugw("knowledge page already loaded", "url", p.URL)
				continue
			}
		}

		chunks := Chunk(p.Markdown, b.chunkSize)
		if len(chunks) == 0 {
			continue
		}
		docs := make([]Document, len(chunks))
		for i, c := range chunks {
			docs[i] = Document{ID: p.URL + "#" + strconv.Itoa(i), URL: p.URL, Title: p.Title, Content: c, Chunk: i}
		}
		vectors, err := b.embedder.Embed(ctx, chunks)
		if err != nil {
			return res, fmt.Errorf("embed %s: %w", p.URL, err)
		}
		if err := b.store.Upsert(ctx, docs, vectors); err != nil {
			return res, err
		}
		if b.contents != nil {
			sum := sha256.Sum256([]byte(p.Markdown))
			if err := b.contents.MarkContent(ctx, p.URL, hex.EncodeToString(sum[:]), len(chunks)); err != nil {
				return res, err
			}
		}
		res.Pages++
		res.Chunks += len(chunks)
		b.log.Infow("loaded knowledge page", "url", p.URL, "chunks", len(chunks))
	}
	return res, nil
}

// Search returns the limit documents closest to query.
func (b *Base) Search(ctx context.Context, query string, limit int) ([]ScoredDocument, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	vectors, err := b.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return b.store.Search(ctx, vectors[0], limit)
}

// Format renders hits for a model prompt.
func Format(hits []ScoredDocument) string {
	if len(hits) == 0 {
		return "No relevant information found."
	}
	var sb strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&sb, "### %d. %s (score %.3f)\nSource: %s\n\n%s\n\n", i+1, h.Title, h.Score, h.URL, h.Content)
	}
	return strings.TrimSpace(sb.String())
}
