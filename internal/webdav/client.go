// Package webdav is a small WebDAV client covering the calls a tree
// sync needs: depth-one PROPFIND, MKCOL, DELETE, GET, PUT and a
// PROPPATCH of the last modified time.
package webdav

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/alexjbarnes/dav-sync/internal/errors"
	"github.com/alexjbarnes/dav-sync/internal/tree"
)

const (
	// maxRedirects is the maximum number of HTTP redirects to follow
	// before giving up, matching the default net/http limit.
	maxRedirects = 10

	// DefaultTimeout is used when Options.Timeout is zero.
	DefaultTimeout = 5 * time.Minute

	// maxListingBytes caps PROPFIND response reads. A depth-one listing
	// of even a very large directory stays well below this.
	maxListingBytes = 64 << 20

	propfindBody = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<D:propfind xmlns:D="DAV:"><D:allprop/></D:propfind>`

	proppatchTemplate = `<?xml version="1.0" encoding="UTF-8"?>` +
		`<D:propertyupdate xmlns:D="DAV:"><D:set><D:prop>` +
		`<D:lastmodified>%d</D:lastmodified>` +
		`</D:prop></D:set></D:propertyupdate>`
)

// StatusError reports a response whose status code was not one the
// call accepts. It matches errors.ErrUnexpectedStatus.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.Code)
	}

	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return apperrors.ErrUnexpectedStatus }

// StatusCode extracts the HTTP status from err, or 0 when err is not a
// StatusError.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}

	return 0
}

// Options configures a Client.
type Options struct {
	User     string
	Password string

	// Insecure disables TLS certificate verification.
	Insecure bool

	// Timeout bounds every request, including body transfer.
	Timeout time.Duration

	// HTTPClient overrides the client built from the fields above.
	// Used by tests.
	HTTPClient *http.Client
}

// Client talks to one WebDAV root, e.g. https://host/remote.php/webdav.
// All paths passed to its methods are decoded, root-relative paths.
type Client struct {
	httpClient *http.Client
	root       *url.URL
	user       string
	password   string
}

// sameHostRedirectPolicy follows redirects only when the target host
// matches the original request host, so basic auth credentials never
// leak to a third-party domain.
func sameHostRedirectPolicy(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return errors.New("stopped after 10 redirects")
	}

	if len(via) > 0 {
		origHost := via[0].URL.Host
		if req.URL.Host != origHost {
			return fmt.Errorf("redirect to different host blocked: %s -> %s", origHost, req.URL.Host)
		}
	}

	return nil
}

// NewHTTPClient builds the http.Client used for both the probe and the
// sync calls.
func NewHTTPClient(insecure bool, timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // G402: opt-in via --insecure
	}

	return &http.Client{
		Timeout:       timeout,
		Transport:     transport,
		CheckRedirect: sameHostRedirectPolicy,
	}
}

// NewClient creates a client for the DAV root at rawURL.
func NewClient(rawURL string, opts Options) (*Client, error) {
	root, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	if root.Scheme != "http" && root.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", root.Scheme)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = NewHTTPClient(opts.Insecure, opts.Timeout)
	}

	return &Client{
		httpClient: hc,
		root:       root,
		user:       opts.User,
		password:   opts.Password,
	}, nil
}

// RootPath returns the decoded URL path of the DAV root. Hrefs in
// listings are made relative to it.
func (c *Client) RootPath() string {
	return tree.Normalize(c.root.Path)
}

// URL returns the absolute URL for a root-relative path. Each segment
// is percent-encoded separately.
func (c *Client) URL(p string) string {
	p = tree.Normalize(p)

	u := *c.root
	u.Path = strings.TrimSuffix(c.root.Path, "/") + p
	u.RawPath = strings.TrimSuffix(c.root.EscapedPath(), "/") + encodePath(p)

	return u.String()
}

func encodePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}

	return strings.Join(segs, "/")
}

func (c *Client) do(ctx context.Context, method, p string, body []byte, header http.Header) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(p), rdr)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}

	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if c.user != "" || c.password != "" {
		req.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, p, err)
	}

	return resp, nil
}

// expect drains and closes resp, returning a StatusError unless the
// status is one of codes.
func expect(resp *http.Response, method, p string, codes ...int) error {
	defer resp.Body.Close()

	for _, code := range codes {
		if resp.StatusCode == code {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
	}

	return statusError(resp, method, p)
}

func statusError(resp *http.Response, method, p string) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))

	return &StatusError{
		Method: method,
		Path:   p,
		Code:   resp.StatusCode,
		Body:   sanitizeResponseBody(snippet),
	}
}

// sanitizeResponseBody truncates and sanitizes a response body for
// inclusion in error messages. Limits to 256 bytes and replaces
// non-printable characters to prevent log injection.
func sanitizeResponseBody(body []byte) string {
	const maxLen = 256
	if len(body) > maxLen {
		body = body[:maxLen]
	}

	var clean []byte

	for len(body) > 0 {
		r, size := utf8.DecodeRune(body)
		if r == utf8.RuneError && size <= 1 {
			clean = append(clean, '?')
			body = body[1:]

			continue
		}

		if r < 0x20 && r != '\t' {
			clean = append(clean, ' ')
		} else {
			clean = append(clean, body[:size]...)
		}

		body = body[size:]
	}

	return strings.TrimSpace(string(clean))
}

// PropFind lists p and its direct children (Depth: 1). Success is 207
// Multi-Status; any other status is a StatusError.
func (c *Client) PropFind(ctx context.Context, p string) ([]Resource, error) {
	header := http.Header{}
	header.Set("Depth", "1")
	header.Set("Content-Type", `application/xml; charset="utf-8"`)

	resp, err := c.do(ctx, "PROPFIND", p, []byte(propfindBody), header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus {
		return nil, statusError(resp, "PROPFIND", p)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("reading listing of %s: %w", p, err)
	}

	return parseMultistatus(body, c.RootPath())
}

// Mkcol creates a single collection. Servers answer 405 when it
// already exists.
func (c *Client) Mkcol(ctx context.Context, p string) error {
	resp, err := c.do(ctx, "MKCOL", p, nil, nil)
	if err != nil {
		return err
	}

	return expect(resp, "MKCOL", p, http.StatusCreated)
}

// Delete removes a file or, recursively, a collection.
func (c *Client) Delete(ctx context.Context, p string) error {
	resp, err := c.do(ctx, http.MethodDelete, p, nil, nil)
	if err != nil {
		return err
	}

	return expect(resp, http.MethodDelete, p, http.StatusNoContent, http.StatusOK, http.StatusAccepted)
}

// Get returns the full content of a file.
func (c *Client) Get(ctx context.Context, p string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, p, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, http.MethodGet, p)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p, err)
	}

	return data, nil
}

// Put uploads data as the full content of p.
func (c *Client) Put(ctx context.Context, p string, data []byte) error {
	header := http.Header{}
	header.Set("Content-Type", "application/octet-stream")

	resp, err := c.do(ctx, http.MethodPut, p, data, header)
	if err != nil {
		return err
	}

	return expect(resp, http.MethodPut, p, http.StatusCreated, http.StatusNoContent, http.StatusOK)
}

// SetModTime sets the server-side modification time of p via a
// PROPPATCH of DAV:lastmodified in epoch seconds, the form ownCloud
// and Nextcloud accept.
func (c *Client) SetModTime(ctx context.Context, p string, mtime time.Time) error {
	header := http.Header{}
	header.Set("Content-Type", `application/xml; charset="utf-8"`)

	body := fmt.Sprintf(proppatchTemplate, mtime.Unix())

	resp, err := c.do(ctx, "PROPPATCH", p, []byte(body), header)
	if err != nil {
		return err
	}

	return expect(resp, "PROPPATCH", p, http.StatusMultiStatus, http.StatusOK)
}

// statusCodeFromLine parses "HTTP/1.1 200 OK" into 200. An empty or
// malformed line yields 0.
func statusCodeFromLine(line string) int {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}

	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}

	return code
}
