package loader

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Yates-Labs/ragify/internal/rag"
	"github.com/ledongthuc/pdf"
)

// PDFLoader returns one chunk per page, numbered from 1.
type PDFLoader struct{}

func (PDFLoader) Extensions() []string { return []string{".pdf"} }

func (PDFLoader) Load(ctx context.Context, name string, data []byte) (chunks []rag.Chunk, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			chunks, err = nil, fmt.Errorf("%w: pdf %s: %v", ErrMalformed, name, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: pdf %s: %v", ErrMalformed, name, err)
	}

	total := reader.NumPage()
	chunks = make([]rag.Chunk, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: pdf %s page %d: %v", ErrMalformed, name, i, err)
		}
		chunks = append(chunks, chunk(text, map[string]any{
			MetaSource: name,
			MetaPage:   i,
		}))
	}
	return chunks, nil
}
