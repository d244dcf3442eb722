package loader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"

	"github.com/Yates-Labs/ragify/internal/rag"
)

var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
	"head":     true,
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "blockquote": true, "header": true,
	"footer": true, "table": true, "ul": true, "ol": true, "main": true,
}

// HTMLLoader extracts the visible text of a web page as one chunk. It is used
// for URL sources and is not registered for uploads.
type HTMLLoader struct{}

func (HTMLLoader) Extensions() []string { return []string{".html", ".htm"} }

func (HTMLLoader) Load(ctx context.Context, name string, data []byte) ([]rag.Chunk, error) {
	title, text, err := ExtractHTML(data)
	if err != nil {
		return nil, err
	}

	meta := map[string]any{MetaSource: name}
	if title != "" {
		meta[MetaTitle] = title
	}
	return []rag.Chunk{chunk(text, meta)}, nil
}

// ExtractHTML returns the page title and its visible text, one line per block element.
func ExtractHTML(data []byte) (title, text string, err error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", "", fmt.Errorf("%w: html: %v", ErrMalformed, err)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				b.WriteString(t)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			b.WriteByte('\n')
		}
	}
	walk(doc)

	return findTitle(doc), normalizeLines(b.String()), nil
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// normalizeLines trims every line and drops empty ones.
func normalizeLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
