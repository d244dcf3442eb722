package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Yates-Labs/ragify/internal/rag"
)

const docxBodyPart = "word/document.xml"

// DocxLoader returns the body text of an Office Open XML document as one
// chunk, one line per paragraph.
type DocxLoader struct{}

func (DocxLoader) Extensions() []string { return []string{".docx"} }

func (DocxLoader) Load(ctx context.Context, name string, data []byte) ([]rag.Chunk, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: docx %s: %v", ErrMalformed, name, err)
	}

	var body *zip.File
	for _, f := range zr.File {
		if f.Name == docxBodyPart {
			body = f
			break
		}
	}
	if body == nil {
		return nil, fmt.Errorf("%w: docx %s: missing %s", ErrMalformed, name, docxBodyPart)
	}

	rc, err := body.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: docx %s: %v", ErrMalformed, name, err)
	}
	defer rc.Close()

	text, err := docxText(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: docx %s: %v", ErrMalformed, name, err)
	}
	return []rag.Chunk{chunk(text, map[string]any{MetaSource: name})}, nil
}

// docxText walks WordprocessingML, keeping <w:t> runs and turning paragraph,
// break and tab elements into whitespace.
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		b      strings.Builder
		inText bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				b.WriteByte('\t')
			case "br", "cr":
				b.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				b.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				b.Write(t)
			}
		}
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
