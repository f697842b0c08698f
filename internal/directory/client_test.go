package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v5"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/carddav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/cardbook/internal/core"
)

// fakeServer serves a fixed set of address books from memory.
type fakeServer struct {
	books   []carddav.AddressBook
	objects map[string][]string // book path -> object paths
	bodies  map[string]string   // object path -> vCard

	mu       sync.Mutex
	failures map[string]int // object path -> remaining transient failures
	opened   []string

	principalErr error
}

func (f *fakeServer) FindCurrentUserPrincipal(context.Context) (string, error) {
	if f.principalErr != nil {
		return "", f.principalErr
	}
	return "/principals/jane/", nil
}

func (f *fakeServer) FindAddressBookHomeSet(_ context.Context, principal string) (string, error) {
	return principal + "addressbooks/", nil
}

func (f *fakeServer) FindAddressBooks(context.Context, string) ([]carddav.AddressBook, error) {
	return f.books, nil
}

func (f *fakeServer) ReadDir(_ context.Context, name string, _ bool) ([]webdav.FileInfo, error) {
	infos := []webdav.FileInfo{{Path: name, IsDir: true}}
	for _, p := range f.objects[name] {
		infos = append(infos, webdav.FileInfo{Path: p})
	}
	return infos, nil
}

func (f *fakeServer) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, name)
	if f.failures[name] > 0 {
		f.failures[name]--
		return nil, errors.New("connection reset by peer")
	}
	body, ok := f.bodies[name]
	if !ok {
		return nil, &StatusError{Code: http.StatusNotFound, Method: http.MethodGet, URL: name}
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func newFake() *fakeServer {
	f := &fakeServer{
		books: []carddav.AddressBook{
			{Path: "/books/personal/", Name: "Personal"},
			{Path: "/books/work/", Name: "Work"},
		},
		objects:  map[string][]string{},
		bodies:   map[string]string{},
		failures: map[string]int{},
	}
	for _, book := range []string{"personal", "work"} {
		bookPath := "/books/" + book + "/"
		for i := 0; i < 3; i++ {
			p := fmt.Sprintf("%s%d.vcf", bookPath, i)
			f.objects[bookPath] = append(f.objects[bookPath], p)
			f.bodies[p] = fmt.Sprintf("BEGIN:VCARD\r\nVERSION:3.0\r\nFN:%s %d\r\nEND:VCARD\r\n", book, i)
		}
	}
	return f
}

func testClient(f *fakeServer, cfg Config) *Client {
	c := newClient(f, cfg)
	c.backOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func paths(records []core.RawRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Path
	}
	return out
}

func TestFetchRecords_AllBooksInOrder(t *testing.T) {
	f := newFake()
	c := testClient(f, Config{Concurrency: 4})

	records, err := c.FetchRecords(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"/books/personal/0.vcf", "/books/personal/1.vcf", "/books/personal/2.vcf",
		"/books/work/0.vcf", "/books/work/1.vcf", "/books/work/2.vcf",
	}, paths(records))
	assert.Contains(t, records[4].Data, "FN:work 1")
}

func TestFetchRecords_FilterByName(t *testing.T) {
	f := newFake()
	c := testClient(f, Config{AddressBooks: []string{"work"}})

	records, err := c.FetchRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		assert.True(t, strings.HasPrefix(r.Path, "/books/work/"), r.Path)
	}
}

func TestFetchRecords_NoMatchingBook(t *testing.T) {
	f := newFake()
	c := testClient(f, Config{AddressBooks: []string{"Family"}})

	_, err := c.FetchRecords(context.Background())

	var terr *core.TransportError
	require.True(t, errors.As(err, &terr), "got %T", err)
	assert.Equal(t, "discover", terr.Op)
	assert.Equal(t, "DAV002", core.MapError(err).Code)
}

func TestFetchRecords_RetriesTransientFailures(t *testing.T) {
	f := newFake()
	f.failures["/books/work/1.vcf"] = 2
	c := testClient(f, Config{MaxRetries: 3})

	records, err := c.FetchRecords(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 6)

	var attempts int
	for _, p := range f.opened {
		if p == "/books/work/1.vcf" {
			attempts++
		}
	}
	assert.Equal(t, 3, attempts)
}

func TestFetchRecords_GivesUpAfterMaxRetries(t *testing.T) {
	f := newFake()
	f.failures["/books/personal/2.vcf"] = 10
	c := testClient(f, Config{MaxRetries: 1, Concurrency: 1})

	_, err := c.FetchRecords(context.Background())

	var terr *core.TransportError
	require.True(t, errors.As(err, &terr), "got %T", err)
	assert.Equal(t, "fetch", terr.Op)
	assert.Equal(t, "/books/personal/2.vcf", terr.Path)
	assert.Equal(t, "DAV003", core.MapError(err).Code)
}

func TestFetchRecords_PermanentStatusNotRetried(t *testing.T) {
	f := newFake()
	f.principalErr = &StatusError{Code: http.StatusUnauthorized, Method: "PROPFIND", URL: "/"}
	calls := 0
	c := testClient(f, Config{MaxRetries: 5})
	c.dav = countingServer{fakeServer: f, calls: &calls}

	_, err := c.FetchRecords(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "DAV001", core.MapError(err).Code)
}

func TestFetchRecords_StatusCodeDecidesCategory(t *testing.T) {
	f := newFake()
	// The URL reads like an auth failure; the status says gone.
	f.principalErr = &StatusError{Code: http.StatusGone, Method: "PROPFIND", URL: "https://dav.example/unauthorized/"}
	c := testClient(f, Config{})

	_, err := c.FetchRecords(context.Background())
	require.Error(t, err)
	assert.Equal(t, "DAV002", core.MapError(err).Code)
}

type countingServer struct {
	*fakeServer
	calls *int
}

func (s countingServer) FindCurrentUserPrincipal(ctx context.Context) (string, error) {
	*s.calls++
	return s.fakeServer.FindCurrentUserPrincipal(ctx)
}

func TestFetchRecords_CancelledContext(t *testing.T) {
	f := newFake()
	c := testClient(f, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchRecords(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSelectAddressBooks(t *testing.T) {
	books := []carddav.AddressBook{
		{Path: "/a/", Name: "Personal"},
		{Path: "/b/", Name: "Work"},
		{Path: "/c/", Name: "Shared"},
	}

	assert.Equal(t, books, SelectAddressBooks(books, nil))

	got := SelectAddressBooks(books, []string{"/c", "personal"})
	require.Len(t, got, 2)
	assert.Equal(t, "Personal", got[0].Name)
	assert.Equal(t, "Shared", got[1].Name)
}

func TestLimitedClient_StatusErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/denied" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newLimitedClient(srv.Client(), 100, 1)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/denied", nil)
	_, err := c.Do(req)
	var serr *StatusError
	require.True(t, errors.As(err, &serr), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, serr.Code)
	assert.False(t, retryable(err))

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/busy", nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.EqualValues(t, 2, hits.Load())
}

func TestLimitedClient_WaitHonorsContext(t *testing.T) {
	c := newLimitedClient(http.DefaultClient, 0.001, 1)
	// Drain the single token.
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, "http://127.0.0.1:1/", nil)

	_, err := c.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{URL: "https://dav.example.com/", User: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, DefaultConcurrency, c.concurrency)
	assert.Equal(t, "https://dav.example.com/", c.endpoint)
}
