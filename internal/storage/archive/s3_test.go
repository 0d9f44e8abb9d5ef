package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/trendweek/internal/backtest"
	"github.com/newthinker/trendweek/internal/core"
)

// fakeBucket serves the path-style subset of the S3 API the archive uses.
type fakeBucket struct {
	name string

	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bucket, key, _ := strings.Cut(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if bucket != b.name {
		writeS3Error(w, http.StatusForbidden, "AccessDenied")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && key == "":
		b.list(w, r.URL.Query().Get("prefix"))
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		b.objects[key] = data
		b.contentTypes[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"0"`)
	case r.Method == http.MethodHead:
		data, ok := b.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	case r.Method == http.MethodGet:
		data, ok := b.objects[key]
		if !ok {
			writeS3Error(w, http.StatusNotFound, "NoSuchKey")
			return
		}
		_, _ = w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (b *fakeBucket) contentType(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.contentTypes[key]
}

func (b *fakeBucket) list(w http.ResponseWriter, prefix string) {
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
	fmt.Fprintf(&sb, "<Name>%s</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys><IsTruncated>false</IsTruncated>",
		b.name, prefix, len(keys))
	for _, k := range keys {
		fmt.Fprintf(&sb, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(b.objects[k]))
	}
	sb.WriteString(`</ListBucketResult>`)

	w.Header().Set("Content-Type", "application/xml")
	_, _ = io.WriteString(w, sb.String())
}

func writeS3Error(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>%s</Code><Message>%s</Message></Error>`, code, code)
}

func newBucketStore(t *testing.T, bucket string) (*S3Storage, *fakeBucket) {
	t.Helper()
	fake := &fakeBucket{name: "results", objects: map[string][]byte{}, contentTypes: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3(S3Config{
		Bucket:    bucket,
		Endpoint:  srv.URL,
		AccessKey: "key",
		SecretKey: "secret",
		Prefix:    "trendweek/",
	})
	require.NoError(t, err)
	return s, fake
}

func TestS3Storage_ImplementsStorage(t *testing.T) {
	var _ Storage = (*S3Storage)(nil)
}

func TestS3Storage_WriteReadExists(t *testing.T) {
	s, fake := newBucketStore(t, "results")
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "runs/FN/2025-06-26/run-1/summary.yaml", []byte("ticker: FN\n")))
	assert.Equal(t, "application/yaml", fake.contentType("trendweek/runs/FN/2025-06-26/run-1/summary.yaml"))

	got, err := s.Read(ctx, "runs/FN/2025-06-26/run-1/summary.yaml")
	require.NoError(t, err)
	assert.Equal(t, "ticker: FN\n", string(got))

	ok, err := s.Exists(ctx, "runs/FN/2025-06-26/run-1/summary.yaml")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "runs/FN/2025-06-26/run-1/trades.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Read(ctx, "runs/FN/2025-06-26/run-1/trades.csv")
	assert.True(t, errors.Is(err, fs.ErrNotExist), "got %v", err)
}

func TestS3Storage_ListIsDirectoryBounded(t *testing.T) {
	s, _ := newBucketStore(t, "results")
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "runs/FN/2025-06-26/a/summary.yaml", []byte("a")))
	require.NoError(t, s.Write(ctx, "runs/FN/2025-06-27/b/trades.csv", []byte("b")))
	require.NoError(t, s.Write(ctx, "runs/FNX/2025-06-26/c/summary.yaml", []byte("c")))

	paths, err := s.List(ctx, "runs/FN")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"runs/FN/2025-06-26/a/summary.yaml",
		"runs/FN/2025-06-27/b/trades.csv",
	}, paths)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestS3Storage_ArchiveRoundTrip(t *testing.T) {
	s, fake := newBucketStore(t, "results")
	a := New(s)
	a.now = func() time.Time { return time.Date(2025, 6, 26, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	res := &backtest.Result{Ticker: "^GSPC", Period: "2020-2025-06-25", InitialBalance: 100000, FinalBalance: 95000}
	dir, err := a.Put(ctx, "run-1", res)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", fake.contentType("trendweek/" + dir + "/trades.csv"))

	summaries, err := a.Summaries(ctx, "^GSPC")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "run-1", summaries[0].RunID)
	assert.Equal(t, 95000.0, summaries[0].FinalBalance)
}

func TestS3Storage_FailuresAreStorageErrors(t *testing.T) {
	s, _ := newBucketStore(t, "locked")
	ctx := context.Background()

	err := s.Write(ctx, "runs/FN/x", []byte("x"))
	assert.True(t, errors.Is(err, core.ErrStorageFailed), "got %v", err)

	_, err = s.List(ctx, "runs")
	assert.True(t, errors.Is(err, core.ErrStorageFailed), "got %v", err)
}

func TestS3Storage_ObjectKey(t *testing.T) {
	tests := []struct {
		prefix string
		path   string
		want   string
	}{
		{"", "runs/FN/summary.yaml", "runs/FN/summary.yaml"},
		{"trendweek", "runs/FN/summary.yaml", "trendweek/runs/FN/summary.yaml"},
		{"trendweek", "/runs//FN/../FN/summary.yaml", "trendweek/runs/FN/summary.yaml"},
	}
	for _, tt := range tests {
		s := &S3Storage{prefix: tt.prefix}
		assert.Equal(t, tt.want, s.objectKey(tt.path))
	}
}
