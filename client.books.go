package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	BooksPath       = "api/books"
	maxErrorBodyLen = 64 << 10
)

// BooksAPI describes the remote books api as consumed by the demo.
type BooksAPI interface {
	CreateBook(ctx context.Context, book Book) (*url.URL, error)
	GetBook(ctx context.Context, path string) (*Book, error)
	GetBooks(ctx context.Context, path string) ([]Book, error)
	AddBook(ctx context.Context, book Book) (Book, error)
	UpdateBook(ctx context.Context, book Book) (Book, error)
	DeleteBook(ctx context.Context, id int) (int, error)
}

var _ BooksAPI = (*BooksClient)(nil) // ensure BooksClient implements BooksAPI.

// ClientOption configures a BooksClient.
type ClientOption func(*BooksClient)

// WithHTTPClient overrides the underlying http client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *BooksClient) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithTimeout sets the whole request timeout. Zero keeps the library default.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *BooksClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHeaders adds default headers sent with every request.
func WithHeaders(h http.Header) ClientOption {
	return func(c *BooksClient) {
		for k, values := range h {
			for _, v := range values {
				c.headers.Add(k, v)
			}
		}
	}
}

// BooksClient talks to a books api rooted at a fixed base address. The base
// address and the default headers are set once at construction.
type BooksClient struct {
	logger     *zap.Logger
	baseURL    *url.URL
	httpClient *http.Client
	headers    http.Header
}

// NewBooksClient provides a client for the books api served at baseURL.
func NewBooksClient(logger *zap.Logger, baseURL string, opts ...ClientOption) (*BooksClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("books client: base url is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("books client: invalid base url: %w", err)
	}
	if !parsed.IsAbs() {
		return nil, fmt.Errorf("books client: base url %q is not absolute", baseURL)
	}

	c := &BooksClient{
		logger:     logger,
		baseURL:    parsed,
		httpClient: &http.Client{},
		headers:    make(http.Header),
	}
	c.headers.Set("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateBook posts a new book and returns the address of the created resource
// exactly as announced by the server in the Location header.
func (c *BooksClient) CreateBook(ctx context.Context, book Book) (*url.URL, error) {
	resp, err := c.send(ctx, http.MethodPost, BooksPath, book)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)
	if err = checkStatus(resp); err != nil {
		return nil, err
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, ErrMissingLocation
	}
	loc, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidLocation, location, err)
	}
	return loc, nil
}

// GetBook fetches a single book. A non-success status yields no book and no
// error; only transport and decoding failures are reported.
func (c *BooksClient) GetBook(ctx context.Context, path string) (*Book, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)
	if !isSuccess(resp.StatusCode) {
		return nil, nil
	}

	var book Book
	if err = json.NewDecoder(resp.Body).Decode(&book); err != nil {
		return nil, fmt.Errorf("books client: decode book: %w", err)
	}
	return &book, nil
}

// GetBooks fetches the collection served at path.
func (c *BooksClient) GetBooks(ctx context.Context, path string) ([]Book, error) {
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer drainAndClose(resp.Body)
	if err = checkStatus(resp); err != nil {
		return nil, err
	}

	books := []Book{}
	if err = json.NewDecoder(resp.Body).Decode(&books); err != nil {
		return nil, fmt.Errorf("books client: decode books: %w", err)
	}
	return books, nil
}

// AddBook posts a new book and returns the stored representation.
func (c *BooksClient) AddBook(ctx context.Context, book Book) (Book, error) {
	return c.sendAndDecode(ctx, http.MethodPost, BooksPath, book)
}

// UpdateBook replaces the book at its by-ID address. The response body is the
// canonical updated state.
func (c *BooksClient) UpdateBook(ctx context.Context, book Book) (Book, error) {
	return c.sendAndDecode(ctx, http.MethodPut, BookPath(book.ID), book)
}

// DeleteBook removes a book by ID and surfaces only the resulting status code.
func (c *BooksClient) DeleteBook(ctx context.Context, id int) (int, error) {
	resp, err := c.send(ctx, http.MethodDelete, BookPath(id), nil)
	if err != nil {
		return 0, err
	}
	drainAndClose(resp.Body)
	return resp.StatusCode, nil
}

func (c *BooksClient) sendAndDecode(ctx context.Context, method, path string, book Book) (Book, error) {
	resp, err := c.send(ctx, method, path, book)
	if err != nil {
		return book, err
	}
	defer drainAndClose(resp.Body)
	if err = checkStatus(resp); err != nil {
		return book, err
	}

	var out Book
	if err = json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return book, fmt.Errorf("books client: decode book: %w", err)
	}
	return out, nil
}

// send issues one request. The payload, when not nil, is sent as JSON.
func (c *BooksClient) send(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	fullURL, err := c.buildURL(path)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err = json.NewEncoder(buf).Encode(payload); err != nil {
			return nil, fmt.Errorf("books client: encode payload: %w", err)
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, err
	}
	req.Header = c.headers.Clone()
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("request failed",
			zap.String("request.method", method),
			zap.String("request.url", fullURL),
			zap.Duration("request.duration", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}
	c.logger.Info("request",
		zap.String("request.method", method),
		zap.String("request.url", fullURL),
		zap.Int("response.status", resp.StatusCode),
		zap.Duration("request.duration", time.Since(start)),
	)
	return resp, nil
}

// buildURL resolves path against the base address. Relative paths such as
// `api/books` follow the usual reference resolution rules.
func (c *BooksClient) buildURL(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("books client: invalid path %q: %w", path, err)
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// BookPath returns the by-ID address of a book.
func BookPath(id int) string {
	return BooksPath + "/" + strconv.Itoa(id)
}

// ResourcePath returns the path and query of a resource address.
func ResourcePath(loc *url.URL) string {
	return loc.RequestURI()
}

// CollectionPath derives the collection address from a created resource
// address by keeping its first three path segments, so that
// `/api/books/8000` gives `/api/books/`.
func CollectionPath(loc *url.URL) (string, error) {
	if loc == nil {
		return "", ErrInvalidLocation
	}
	p := loc.EscapedPath()
	if !strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q has no absolute path", ErrInvalidLocation, loc.String())
	}
	segments := strings.SplitAfter(p, "/")
	if len(segments) < 3 || segments[1] == "" || segments[2] == "" {
		return "", fmt.Errorf("%w: %q has too few segments", ErrInvalidLocation, loc.String())
	}
	return strings.Join(segments[:3], ""), nil
}

func isSuccess(code int) bool {
	return code >= 200 && code <= 299
}

func checkStatus(resp *http.Response) error {
	if isSuccess(resp.StatusCode) {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
	return &StatusError{
		Method:     resp.Request.Method,
		Path:       resp.Request.URL.Path,
		StatusCode: resp.StatusCode,
		Body:       body,
	}
}

func drainAndClose(rc io.ReadCloser) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxErrorBodyLen))
	_ = rc.Close()
}
