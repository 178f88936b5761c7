package webdav

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/alexjbarnes/dav-sync/internal/errors"
	"github.com/tidwall/gjson"
)

const (
	davSuffix = "remote.php/webdav"

	// maxStatusBytes caps the status.php read; the document is tiny.
	maxStatusBytes = 64 << 10
)

// CompleteURL fills in the WebDAV endpoint for a bare server URL:
//
//	https://cloud.example.com/            -> https://cloud.example.com/remote.php/webdav
//	https://cloud.example.com/owncloud    -> https://cloud.example.com/owncloud/remote.php/webdav
//	https://cloud.example.com/remote.php  -> https://cloud.example.com/remote.php/webdav
//
// URLs that already name a webdav endpoint are returned without the
// trailing slash.
func CompleteURL(raw string) string {
	trimmed := strings.TrimRight(raw, "/")

	idx := strings.Index(trimmed, "remote.php")
	if idx < 0 {
		return trimmed + "/" + davSuffix
	}

	if trimmed[idx+len("remote.php"):] == "" {
		return trimmed + "/webdav"
	}

	return trimmed
}

// Probe checks that davURL answers an unauthenticated GET with a 401
// challenge whose WWW-Authenticate header mentions realm. An empty
// realm accepts any challenge.
func Probe(ctx context.Context, hc *http.Client, davURL, realm string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, davURL, nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("probing %s: %w", davURL, err)
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxStatusBytes))

	if resp.StatusCode != http.StatusUnauthorized {
		return fmt.Errorf("%w: %s answered %d, want 401", apperrors.ErrNotDAVServer, davURL, resp.StatusCode)
	}

	challenge := strings.Join(resp.Header.Values("WWW-Authenticate"), ", ")
	if realm != "" && !strings.Contains(challenge, realm) {
		return fmt.Errorf("%w: challenge %q does not mention %q", apperrors.ErrNotDAVServer, challenge, realm)
	}

	return nil
}

// ServerInfo is the subset of status.php the client reports.
type ServerInfo struct {
	Product     string
	Version     string
	Installed   bool
	Maintenance bool
}

// statusURL derives the status.php URL that sits next to remote.php.
func statusURL(davURL string) (string, error) {
	u, err := url.Parse(davURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}

	p := u.Path
	if idx := strings.Index(p, "remote.php"); idx >= 0 {
		p = p[:idx]
	} else {
		p = "/"
	}

	u.Path = strings.TrimSuffix(p, "/") + "/status.php"
	u.RawPath = ""
	u.RawQuery = ""

	return u.String(), nil
}

// ServerStatus fetches status.php next to the DAV root. It is only used
// for logging, so callers treat errors as non-fatal.
func ServerStatus(ctx context.Context, hc *http.Client, davURL string) (*ServerInfo, error) {
	su, err := statusURL(davURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, su, nil)
	if err != nil {
		return nil, fmt.Errorf("creating status request: %w", err)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", su, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBytes))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", su, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Method: http.MethodGet, Path: su, Code: resp.StatusCode}
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s did not return JSON", su)
	}

	doc := gjson.ParseBytes(body)

	version := doc.Get("versionstring").String()
	if version == "" {
		version = doc.Get("version").String()
	}

	return &ServerInfo{
		Product:     doc.Get("productname").String(),
		Version:     version,
		Installed:   doc.Get("installed").Bool(),
		Maintenance: doc.Get("maintenance").Bool(),
	}, nil
}

// LogValue lets a ServerInfo be logged as a group.
func (s ServerInfo) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("product", s.Product),
		slog.String("version", s.Version),
		slog.Bool("maintenance", s.Maintenance),
	)
}
