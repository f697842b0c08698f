// Package directory downloads contact records from a CardDAV server.
//
// Discovery follows the usual CardDAV chain: current-user-principal, then
// the address-book home set, then the address books in it. Every object in
// the selected books is downloaded and returned in server listing order.
// Requests share one token bucket and are retried with exponential backoff.
package directory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/carddav"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/cardbook/internal/core"
	"github.com/JonMunkholm/cardbook/internal/logging"
)

// Defaults applied when Config leaves a field at zero.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultRateLimit   = 10.0
	DefaultRateBurst   = 5
	DefaultConcurrency = 8
)

// Config holds connection settings for a CardDAV server.
type Config struct {
	URL      string
	User     string
	Password string

	// AddressBooks restricts the export to books whose display name or
	// path matches one of the entries. Empty selects every book.
	AddressBooks []string

	Timeout     time.Duration
	RateLimit   float64 // requests per second
	RateBurst   int
	MaxRetries  int
	Concurrency int // parallel object downloads

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

// server is the subset of the CardDAV client used here.
type server interface {
	FindCurrentUserPrincipal(ctx context.Context) (string, error)
	FindAddressBookHomeSet(ctx context.Context, principal string) (string, error)
	FindAddressBooks(ctx context.Context, homeSet string) ([]carddav.AddressBook, error)
	ReadDir(ctx context.Context, name string, recursive bool) ([]webdav.FileInfo, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Client fetches raw vCards from a CardDAV server.
type Client struct {
	dav         server
	endpoint    string
	books       []string
	maxRetries  int
	concurrency int
	backOff     func() backoff.BackOff
}

// New creates a client for cfg. No request is sent until FetchRecords.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = DefaultRateBurst
	}

	httpClient := newLimitedClient(&http.Client{
		Timeout:   cfg.Timeout,
		Transport: cfg.Transport,
	}, cfg.RateLimit, cfg.RateBurst)

	dav, err := carddav.NewClient(webdav.HTTPClientWithBasicAuth(httpClient, cfg.User, cfg.Password), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("create carddav client: %w", err)
	}
	return newClient(dav, cfg), nil
}

func newClient(dav server, cfg Config) *Client {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		dav:         dav,
		endpoint:    cfg.URL,
		books:       cfg.AddressBooks,
		maxRetries:  cfg.MaxRetries,
		concurrency: cfg.Concurrency,
	}
}

// FetchRecords downloads every vCard in the selected address books.
// Failures are returned as *core.TransportError.
func (c *Client) FetchRecords(ctx context.Context) ([]core.RawRecord, error) {
	logger := logging.FromContext(ctx)

	books, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, book := range books {
		objects, err := c.list(ctx, book)
		if err != nil {
			return nil, err
		}
		logger.Debug("address book listed", "book", book.Name, "path", book.Path, "objects", len(objects))
		paths = append(paths, objects...)
	}

	records, err := c.fetchAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	logger.Info("contacts downloaded", "address_books", len(books), "records", len(records))
	return records, nil
}

// discover resolves the address books to export.
func (c *Client) discover(ctx context.Context) ([]carddav.AddressBook, error) {
	principal, err := withRetry(ctx, c, func() (string, error) {
		return c.dav.FindCurrentUserPrincipal(ctx)
	})
	if err != nil {
		return nil, &core.TransportError{Op: "discover", Path: c.endpoint, Err: err}
	}

	homeSet, err := withRetry(ctx, c, func() (string, error) {
		return c.dav.FindAddressBookHomeSet(ctx, principal)
	})
	if err != nil {
		return nil, &core.TransportError{Op: "discover", Path: principal, Err: err}
	}

	books, err := withRetry(ctx, c, func() ([]carddav.AddressBook, error) {
		return c.dav.FindAddressBooks(ctx, homeSet)
	})
	if err != nil {
		return nil, &core.TransportError{Op: "discover", Path: homeSet, Err: err}
	}

	selected := SelectAddressBooks(books, c.books)
	if len(selected) == 0 {
		return nil, &core.TransportError{Op: "discover", Path: homeSet, Err: noBooksError(c.books)}
	}
	return selected, nil
}

func noBooksError(filter []string) error {
	if len(filter) == 0 {
		return errors.New("address book not found")
	}
	return fmt.Errorf("no address book matches %s: not found", strings.Join(filter, ", "))
}

// SelectAddressBooks keeps the books whose name or path matches an entry
// of filter, preserving server order. An empty filter keeps every book.
func SelectAddressBooks(books []carddav.AddressBook, filter []string) []carddav.AddressBook {
	if len(filter) == 0 {
		return books
	}
	var out []carddav.AddressBook
	for _, b := range books {
		for _, f := range filter {
			if strings.EqualFold(b.Name, f) || samePath(b.Path, f) {
				out = append(out, b)
				break
			}
		}
	}
	return out
}

func samePath(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}

// list returns the object paths in book, skipping collections.
func (c *Client) list(ctx context.Context, book carddav.AddressBook) ([]string, error) {
	infos, err := withRetry(ctx, c, func() ([]webdav.FileInfo, error) {
		return c.dav.ReadDir(ctx, book.Path, false)
	})
	if err != nil {
		return nil, &core.TransportError{Op: "list", Path: book.Path, Err: err}
	}

	paths := make([]string, 0, len(infos))
	for _, fi := range infos {
		if fi.IsDir || samePath(fi.Path, book.Path) {
			continue
		}
		paths = append(paths, fi.Path)
	}
	return paths, nil
}

// fetchAll downloads paths concurrently; records[i] belongs to paths[i].
func (c *Client) fetchAll(ctx context.Context, paths []string) ([]core.RawRecord, error) {
	records := make([]core.RawRecord, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, p := range paths {
		g.Go(func() error {
			data, err := withRetry(gctx, c, func() (string, error) {
				return c.get(gctx, p)
			})
			if err != nil {
				return &core.TransportError{Op: "fetch", Path: p, Err: err}
			}
			records[i] = core.RawRecord{Path: p, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, path string) (string, error) {
	rc, err := c.dav.Open(ctx, path)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
