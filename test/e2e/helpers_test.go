package e2e_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alexjbarnes/dav-sync/internal/davsync"
	"github.com/alexjbarnes/dav-sync/internal/state"
	"github.com/alexjbarnes/dav-sync/internal/webdav"
	"github.com/stretchr/testify/require"
	xwebdav "golang.org/x/net/webdav"
)

const (
	testUsername = "testuser"
	testPassword = "testpass"
	davPrefix    = "/owncloud/remote.php/webdav"
	statusJSON   = `{"installed":true,"maintenance":false,"versionstring":"10.13.4","productname":"ownCloud"}`
)

var lastModifiedRe = regexp.MustCompile(`<D:lastmodified>(\d+)</D:lastmodified>`)

// harness holds the full e2e stack: an ownCloud-like server with basic
// auth and status.php in front of a temp directory, a local root and a
// run history database.
type harness struct {
	URL       string
	RemoteDir string
	LocalDir  string
	State     *state.State
	Client    *http.Client
	logger    *slog.Logger
}

// newHarness starts the server and opens an isolated state database.
func newHarness(t *testing.T) *harness {
	t.Helper()

	remoteDir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(remoteDir, "Documents"), 0o755))

	dav := &xwebdav.Handler{
		Prefix:     davPrefix,
		FileSystem: xwebdav.Dir(remoteDir),
		LockSystem: xwebdav.NewMemLS(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/owncloud/status.php", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, statusJSON)
	})
	davHandler := basicAuth(proppatchMTime(dav, remoteDir))
	mux.Handle(davPrefix, davHandler)
	mux.Handle(davPrefix+"/", davHandler)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	st, err := state.LoadAt(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return &harness{
		URL:       srv.URL + "/owncloud/",
		RemoteDir: remoteDir,
		LocalDir:  filepath.Join(t.TempDir(), "local"),
		State:     st,
		Client:    srv.Client(),
		logger:    slog.New(slog.DiscardHandler),
	}
}

// basicAuth challenges the way ownCloud does.
func basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != testUsername || pass != testPassword {
			w.Header().Set("WWW-Authenticate", `Basic realm="ownCloud", charset="UTF-8"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// proppatchMTime applies DAV:lastmodified to the backing file, which the
// stock handler only stores as a dead property.
func proppatchMTime(dav http.Handler, root string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PROPPATCH" {
			dav.ServeHTTP(w, r)
			return
		}

		body, _ := io.ReadAll(r.Body)

		m := lastModifiedRe.FindSubmatch(body)
		if m == nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		sec, _ := strconv.ParseInt(string(m[1]), 10, 64)
		rel := strings.TrimPrefix(r.URL.Path, davPrefix)
		mtime := time.Unix(sec, 0)

		if err := os.Chtimes(filepath.Join(root, filepath.FromSlash(rel)), mtime, mtime); err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.WriteHeader(http.StatusMultiStatus)
	})
}

// davURL completes the server URL and checks it, as the CLI does
// before every sync.
func (h *harness) davURL(t *testing.T) string {
	t.Helper()

	u := webdav.CompleteURL(h.URL)
	require.NoError(t, webdav.Probe(context.Background(), h.Client, u, "ownCloud"))

	return u
}

func (h *harness) client(t *testing.T, password string) *webdav.Client {
	t.Helper()

	c, err := webdav.NewClient(h.davURL(t), webdav.Options{
		User:       testUsername,
		Password:   password,
		HTTPClient: h.Client,
	})
	require.NoError(t, err)

	return c
}

// sync runs one engine pass and records it in the harness history.
func (h *harness) sync(t *testing.T, policy davsync.Policy, opts davsync.Options) *davsync.Report {
	t.Helper()

	engine := davsync.NewEngine(h.client(t, testPassword), h.logger, opts)

	report, err := engine.Run(context.Background(), policy, h.LocalDir, "/Documents")
	require.NoError(t, err)

	require.NoError(t, h.State.RecordRun(h.profile(), state.RunRecord{
		Started:  report.Started,
		Duration: report.Duration,
		Policy:   string(report.Policy),
		Planned:  report.Planned,
		Applied:  report.Applied,
		Failed:   report.Failed,
		Skipped:  report.Skipped,
		Ops:      report.Ops,
		DryRun:   report.DryRun,
	}))

	return report
}

func (h *harness) profile() string {
	return state.ProfileKey(webdav.CompleteURL(h.URL), testUsername, h.LocalDir, "/Documents/")
}

func writeFile(t *testing.T, root, rel, content string, mtime int64) {
	t.Helper()

	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	ts := time.Unix(mtime, 0)
	require.NoError(t, os.Chtimes(p, ts, ts))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)

	return string(data)
}

func modTime(t *testing.T, root, rel string) int64 {
	t.Helper()

	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)

	return info.ModTime().Unix()
}
