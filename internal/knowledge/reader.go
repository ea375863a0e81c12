package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/courtside/internal/logging"
	"github.com/dotcommander/courtside/internal/stats"
)

// Page is one crawled page converted to markdown.
type Page struct {
	URL      string
	Title    string
	Markdown string
}

// WebsiteReader crawls same-host links breadth first.
type WebsiteReader struct {
	Getter stats.PageGetter
	// MaxDepth counts the start page as depth 1.
	MaxDepth int
	// MaxLinks caps the number of pages read.
	MaxLinks int
	// Parallel bounds concurrent fetches per level.
	Parallel int
	Log      *logging.Logger
}

// Read crawls from start and returns the pages in visit order. Pages that
// fail to load are logged and skipped; Read fails only when the start page
// does.
func (r *WebsiteReader) Read(ctx context.Context, start string) ([]Page, error) {
	root, err := url.Parse(start)
	if err != nil || root.Host == "" {
		return nil, fmt.Errorf("invalid start url %q", start)
	}
	maxDepth, maxLinks := max(r.MaxDepth, 1), max(r.MaxLinks, 1)
	parallel := r.Parallel
	if parallel <= 0 {
		parallel = 4
	}
	log := logging.OrNop(r.Log)
	conv := md.NewConverter(root.Host, true, nil)

	seen := map[string]bool{normalize(root): true}
	level := []string{normalize(root)}
	var pages []Page

	for depth := 1; depth <= maxDepth && len(level) > 0 && len(pages) < maxLinks; depth++ {
		if room := maxLinks - len(pages); len(level) > room {
			level = level[:room]
		}
		results := make([]*fetched, len(level))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(parallel)
		var mu sync.Mutex
		var firstErr error
		for i, u := range level {
			g.Go(func() error {
				res, err := r.fetch(gctx, conv, u)
				if err != nil {
					log.Warnw("skipping knowledge page", "url", u, "error", err)
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return nil
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if depth == 1 && results[0] == nil {
			return nil, fmt.Errorf("read %s: %w", start, firstErr)
		}

		var next []string
		for _, res := range results {
			if res == nil {
				continue
			}
			pages = append(pages, res.page)
			for _, link := range res.links {
				lu, err := url.Parse(link)
				if err != nil || lu.Host != root.Host {
					continue
				}
				n := normalize(lu)
				if !seen[n] {
					seen[n] = true
					next = append(next, n)
				}
			}
		}
		level = next
	}
	return pages, nil
}

type fetched struct {
	page  Page
	links []string
}

func (r *WebsiteReader) fetch(ctx context.Context, conv *md.Converter, pageURL string) (*fetched, error) {
	p, err := r.Getter.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if p.StatusCode < 200 || p.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d", p.StatusCode)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, _ := url.Parse(pageURL)

	var links []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil || strings.HasPrefix(href, "#") {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme == "http" || abs.Scheme == "https" {
			links = append(links, abs.String())
		}
	})

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script,style,nav,header,footer,noscript").Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	markdown := strings.TrimSpace(conv.Convert(body))
	return &fetched{page: Page{URL: pageURL, Title: title, Markdown: markdown}, links: links}, nil
}

func normalize(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawQuery = ""
	if c.Path == "" {
		c.Path = "/"
	}
	return c.String()
}

// Chunk splits markdown into pieces of at most size bytes, breaking on
// paragraph boundaries where possible.
func Chunk(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	var chunks []string
	var cur strings.Builder
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
		cur.Reset()
	}
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		for len(para) > size {
			flush()
			cut := strings.LastIndexByte(para[:size], ' ')
			if cut <= 0 {
				cut = size
			}
			chunks = append(chunks, strings.TrimSpace(para[:cut]))
			para = strings.TrimSpace(para[cut:])
		}
		if cur.Len() > 0 && cur.Len()+2+len(para) > size {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(para)
	}
	flush()
	return chunks
}
