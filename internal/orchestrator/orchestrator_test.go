package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Yates-Labs/ragify/internal/catalog"
	"github.com/Yates-Labs/ragify/internal/ingest/loader"
	"github.com/Yates-Labs/ragify/internal/rag"
)

type recordingCatalog struct {
	mu      sync.Mutex
	sources []catalog.Source
	err     error
}

func (r *recordingCatalog) Add(ctx context.Context, s catalog.Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sources = append(r.sources, s)
	return nil
}

func newTestIngestor(t *testing.T, recorder SourceRecorder, options ...IngestorOption) (*Ingestor, *rag.MockEmbedder, *rag.MockIndex) {
	t.Helper()
	embedder := &rag.MockEmbedder{}
	index := &rag.MockIndex{}
	ing, err := NewIngestor(embedder, index, recorder, rag.DefaultIndexOptions(), options...)
	require.NoError(t, err)
	return ing, embedder, index
}

func TestNewIngestor_Validation(t *testing.T) {
	_, err := NewIngestor(nil, &rag.MockIndex{}, nil, rag.IndexOptions{})
	assert.Error(t, err)

	ing, err := NewIngestor(&rag.MockEmbedder{}, &rag.MockIndex{}, nil, rag.IndexOptions{})
	require.NoError(t, err)
	assert.Equal(t, rag.DefaultIndexOptions(), ing.opts)
}

func TestIngest_UnsupportedTypeMakesNoCalls(t *testing.T) {
	ing, embedder, index := newTestIngestor(t, nil)

	result, err := ing.Ingest(context.Background(), "data.xyz", []byte("whatever"))

	assert.ErrorIs(t, err, loader.ErrUnsupportedType)
	assert.NotErrorIs(t, err, ErrIngestFailed)
	assert.Nil(t, result)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	index.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestIngest_TextFile(t *testing.T) {
	recorder := &recordingCatalog{}
	ing, embedder, index := newTestIngestor(t, recorder)

	embedder.On("Embed", mock.Anything, []string{"hello world"}).Return(rag.EmbedEach("hello world"), nil)
	index.On("Upsert", mock.Anything, mock.MatchedBy(func(records []rag.Record) bool {
		return len(records) == 1 &&
			records[0].Text == "hello world" &&
			records[0].Metadata["source"] == "notes.txt" &&
			records[0].Metadata["source_id"] != nil
	})).Return(nil)

	result, err := ing.Ingest(context.Background(), "uploads/notes.txt", []byte("hello world"))
	require.NoError(t, err)

	assert.Equal(t, []string{"hello world"}, result.Content)
	assert.Equal(t, catalog.KindFile, result.Kind)
	assert.Equal(t, "notes.txt", result.Title)
	assert.NotEmpty(t, result.SourceID)

	require.Len(t, recorder.sources, 1)
	assert.Equal(t, result.SourceID, recorder.sources[0].ID)
	assert.Equal(t, 1, recorder.sources[0].ChunkCount)

	embedder.AssertExpectations(t)
	index.AssertExpectations(t)
}

func TestIngest_BlankFileIndexesNothing(t *testing.T) {
	recorder := &recordingCatalog{}
	ing, embedder, index := newTestIngestor(t, recorder)

	result, err := ing.Ingest(context.Background(), "empty.txt", []byte("  \n "))
	require.NoError(t, err)

	assert.Empty(t, result.Content)
	assert.Empty(t, recorder.sources)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	index.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestIngest_MalformedDocument(t *testing.T) {
	ing, embedder, _ := newTestIngestor(t, nil)

	_, err := ing.Ingest(context.Background(), "broken.pdf", []byte("not a pdf"))

	assert.ErrorIs(t, err, ErrIngestFailed)
	assert.ErrorIs(t, err, loader.ErrMalformed)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestIngest_EmbeddingFailure(t *testing.T) {
	ing, embedder, index := newTestIngestor(t, nil)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited"))

	_, err := ing.Ingest(context.Background(), "notes.txt", []byte("content"))

	assert.ErrorIs(t, err, ErrIngestFailed)
	index.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestIngest_RecorderFailureIsNotFatal(t *testing.T) {
	recorder := &recordingCatalog{err: errors.New("disk full")}
	ing, embedder, index := newTestIngestor(t, recorder)
	embedder.On("Embed", mock.Anything, mock.Anything).Return(rag.EmbedEach("content"), nil)
	index.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	result, err := ing.Ingest(context.Background(), "notes.txt", []byte("content"))

	require.NoError(t, err)
	assert.Equal(t, []string{"content"}, result.Content)
}

func TestIngestText(t *testing.T) {
	ing, embedder, index := newTestIngestor(t, nil)
	embedder.On("Embed", mock.Anything, []string{"pasted text"}).Return(rag.EmbedEach("pasted text"), nil)
	index.On("Upsert", mock.Anything, mock.MatchedBy(func(records []rag.Record) bool {
		return len(records) == 1 && records[0].Metadata["source"] == "Untitled text"
	})).Return(nil)

	result, err := ing.IngestText(context.Background(), "  ", "pasted text")
	require.NoError(t, err)

	assert.Equal(t, catalog.KindText, result.Kind)
	assert.Equal(t, "Untitled text", result.Title)
	assert.Equal(t, []string{"pasted text"}, result.Content)
	index.AssertExpectations(t)
}

func TestIngestText_Empty(t *testing.T) {
	ing, embedder, _ := newTestIngestor(t, nil)

	_, err := ing.IngestText(context.Background(), "title", " \n ")

	assert.ErrorIs(t, err, ErrEmptyText)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestIngestURL_InvalidURL(t *testing.T) {
	ing, embedder, _ := newTestIngestor(t, nil)

	for _, raw := range []string{"", "not a url", "ftp://example.com/file", "file:///etc/passwd", "http://"} {
		_, err := ing.IngestURL(context.Background(), raw, "")
		assert.ErrorIs(t, err, ErrInvalidURL, "url %q", raw)
	}
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestIngestURL_HTMLPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>Field Guide</title></head>
<body><h1>Intro</h1><p>Owls hunt at night.</p><script>track()</script></body></html>`))
	}))
	defer srv.Close()

	recorder := &recordingCatalog{}
	ing, embedder, index := newTestIngestor(t, recorder, WithHTTPClient(srv.Client()))
	embedder.On("Embed", mock.Anything, mock.Anything).Return(rag.EmbedEach("page"), nil)
	index.On("Upsert", mock.Anything, mock.MatchedBy(func(records []rag.Record) bool {
		return len(records) == 1 && records[0].Metadata["title"] == "Field Guide"
	})).Return(nil)

	result, err := ing.IngestURL(context.Background(), srv.URL+"/guide", "")
	require.NoError(t, err)

	assert.Equal(t, catalog.KindURL, result.Kind)
	assert.Equal(t, "Field Guide", result.Title)
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0], "Owls hunt at night.")
	assert.NotContains(t, result.Content[0], "track()")
	require.Len(t, recorder.sources, 1)
	assert.Equal(t, catalog.KindURL, recorder.sources[0].Kind)
}

func TestIngestURL_PlainTextKeepsCallerTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("<b>not markup</b>"))
	}))
	defer srv.Close()

	ing, embedder, index := newTestIngestor(t, nil, WithHTTPClient(srv.Client()))
	embedder.On("Embed", mock.Anything, []string{"<b>not markup</b>"}).Return(rag.EmbedEach("x"), nil)
	index.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	result, err := ing.IngestURL(context.Background(), srv.URL, "My notes")
	require.NoError(t, err)
	assert.Equal(t, "My notes", result.Title)
	assert.Equal(t, []string{"<b>not markup</b>"}, result.Content)
}

func TestIngestURL_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	ing, embedder, _ := newTestIngestor(t, nil, WithHTTPClient(srv.Client()))

	_, err := ing.IngestURL(context.Background(), srv.URL+"/missing", "")

	assert.ErrorIs(t, err, ErrFetchFailed)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestIngestURL_NoVisibleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><script>only()</script></body></html>`))
	}))
	defer srv.Close()

	ing, _, _ := newTestIngestor(t, nil, WithHTTPClient(srv.Client()))

	_, err := ing.IngestURL(context.Background(), srv.URL, "")
	assert.ErrorIs(t, err, ErrIngestFailed)
}

func TestIngestURL_HTMLPageCallerTitleWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Page Title</title></head><body><p>Body</p></body></html>`))
	}))
	defer srv.Close()

	ing, embedder, index := newTestIngestor(t, nil, WithHTTPClient(srv.Client()))
	embedder.On("Embed", mock.Anything, []string{"Body"}).Return(rag.EmbedEach("x"), nil)
	index.On("Upsert", mock.Anything, mock.MatchedBy(func(records []rag.Record) bool {
		return len(records) == 1 &&
			records[0].Metadata[loader.MetaTitle] == "Mine" &&
			records[0].Metadata[loader.MetaSource] == srv.URL
	})).Return(nil)

	result, err := ing.IngestURL(context.Background(), srv.URL, "Mine")
	require.NoError(t, err)
	assert.Equal(t, "Mine", result.Title)
}

func TestIngestURL_RejectsLoopback(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("internal"))
	}))
	defer srv.Close()

	// default client
	ing, embedder, _ := newTestIngestor(t, nil)

	for _, target := range []string{srv.URL, strings.Replace(srv.URL, "127.0.0.1", "localhost", 1)} {
		_, err := ing.IngestURL(context.Background(), target+"/admin", "")
		assert.ErrorIs(t, err, ErrInvalidURL, "url %q", target)
		assert.NotErrorIs(t, err, ErrFetchFailed)
	}
	assert.Zero(t, hits)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
}

func TestCheckRedirect(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://example.com/next", nil)
	assert.NoError(t, checkRedirect(req, nil))

	bad := httptest.NewRequest(http.MethodGet, "https://example.com/next", nil)
	bad.URL, _ = url.Parse("file:///etc/passwd")
	assert.ErrorIs(t, checkRedirect(bad, nil), ErrInvalidURL)

	via := make([]*http.Request, maxRedirects)
	assert.ErrorIs(t, checkRedirect(req, via), ErrFetchFailed)
}

func TestIsPublicAddr(t *testing.T) {
	tests := []struct {
		addr   string
		public bool
	}{
		{"93.184.216.34", true},
		{"2606:2800:220:1:248:1893:25c8:1946", true},
		{"127.0.0.1", false},
		{"::1", false},
		{"10.1.2.3", false},
		{"172.16.0.1", false},
		{"192.168.1.1", false},
		{"169.254.169.254", false},
		{"fe80::1", false},
		{"fd00::1", false},
		{"0.0.0.0", false},
		{"::", false},
		{"100.64.0.1", false},
		{"224.0.0.1", false},
		{"::ffff:127.0.0.1", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.public, isPublicAddr(netip.MustParseAddr(tt.addr)))
		})
	}
}

func TestGuardDial(t *testing.T) {
	assert.NoError(t, guardDial("tcp4", "93.184.216.34:443", nil))
	assert.ErrorIs(t, guardDial("tcp4", "127.0.0.1:80", nil), ErrInvalidURL)
	assert.ErrorIs(t, guardDial("tcp6", "[::1]:80", nil), ErrInvalidURL)
	assert.ErrorIs(t, guardDial("tcp", "no-port", nil), ErrInvalidURL)
}

func TestTitleFromURL(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"https://example.com", "example.com"},
		{"https://example.com/", "example.com"},
		{"https://example.com/docs/guide.html", "example.com/guide.html"},
		{"http://localhost:8080/a/b/", "localhost:8080/b"},
	}

	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		require.NoError(t, err)
		assert.Equal(t, tt.expected, titleFromURL(u), tt.raw)
	}
}

func TestIsPlainText(t *testing.T) {
	assert.True(t, isPlainText("text/plain"))
	assert.True(t, isPlainText("text/markdown; charset=utf-8"))
	assert.False(t, isPlainText("text/html; charset=utf-8"))
	assert.False(t, isPlainText("TEXT/HTML"))
	assert.False(t, isPlainText("application/xhtml+xml"))
	assert.False(t, isPlainText(""))
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "  ", "b", "c"))
	assert.Equal(t, "", firstNonEmpty(" ", ""))
}
