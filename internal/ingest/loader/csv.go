package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Yates-Labs/ragify/internal/rag"
)

// CSVLoader returns one chunk per data row, rendered as "header: value"
// lines. The line metadata counts data rows from 1.
type CSVLoader struct{}

func (CSVLoader) Extensions() []string { return []string{".csv"} }

func (CSVLoader) Load(ctx context.Context, name string, data []byte) ([]rag.Chunk, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: csv %s: %v", ErrMalformed, name, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var chunks []rag.Chunk
	for line := 1; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: csv %s: %v", ErrMalformed, name, err)
		}

		var b strings.Builder
		for i, value := range record {
			key := strconv.Itoa(i)
			if i < len(header) && header[i] != "" {
				key = header[i]
			}
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(key)
			b.WriteString(": ")
			b.WriteString(strings.TrimSpace(value))
		}

		chunks = append(chunks, chunk(b.String(), map[string]any{
			MetaSource: name,
			MetaLine:   line,
		}))
	}
	return chunks, nil
}
