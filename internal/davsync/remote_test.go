package davsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	apperrors "github.com/alexjbarnes/dav-sync/internal/errors"
	"github.com/alexjbarnes/dav-sync/internal/webdav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	tsA = "Tue, 14 Nov 2023 22:13:20 GMT"
	tsB = "Tue, 14 Nov 2023 22:13:21 GMT"
)

func dirRes(p string) webdav.Resource {
	return webdav.Resource{Path: p, LastModified: tsA}
}

func fileRes(p, length string) webdav.Resource {
	return webdav.Resource{Path: p, LastModified: tsB, ContentLength: length, HasLength: true}
}

func TestBuildRemoteIndex_DepthOneRecursion(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := NewMockRemote(ctrl)
	ctx := context.Background()

	gomock.InOrder(
		remote.EXPECT().PropFind(gomock.Any(), "/base/").Return([]webdav.Resource{
			dirRes("/base/"),
			dirRes("/base/docs/"),
			fileRes("/base/top.txt", "3"),
		}, nil),
		remote.EXPECT().PropFind(gomock.Any(), "/base/docs/").Return([]webdav.Resource{
			dirRes("/base/docs/"),
			fileRes("/base/docs/a.md", "10"),
			dirRes("/base/docs/empty/"),
		}, nil),
		remote.EXPECT().PropFind(gomock.Any(), "/base/docs/empty/").Return([]webdav.Resource{
			dirRes("/base/docs/empty"),
		}, nil),
	)

	ix, err := BuildRemoteIndex(ctx, remote, "/base", nil, testLogger())
	require.NoError(t, err)

	assert.Equal(t, []string{"/docs/", "/docs/empty/"}, ix.DirPaths())
	assert.Equal(t, []string{"/docs/a.md", "/top.txt"}, ix.FilePaths())

	f, ok := ix.File("/docs/a.md")
	require.True(t, ok)
	assert.Equal(t, int64(1700000001000), f.MTime)
	assert.Equal(t, int64(10), f.Size)
	assert.False(t, ix.HasDir("/"), "root entry is stripped")
}

func TestBuildRemoteIndex_TopLevelFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := NewMockRemote(ctrl)

	remote.EXPECT().PropFind(gomock.Any(), "/").
		Return(nil, &webdav.StatusError{Method: "PROPFIND", Path: "/", Code: 500})

	ix, err := BuildRemoteIndex(context.Background(), remote, "/", nil, testLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrRemoteListing)
	assert.ErrorIs(t, err, apperrors.ErrUnexpectedStatus)
	assert.Zero(t, ix.Dirs()+ix.Files())
}

func TestBuildRemoteIndex_NestedFailureSkipsSubtree(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := NewMockRemote(ctrl)

	remote.EXPECT().PropFind(gomock.Any(), "/").Return([]webdav.Resource{
		dirRes("/"),
		dirRes("/broken/"),
		dirRes("/ok/"),
	}, nil)
	remote.EXPECT().PropFind(gomock.Any(), "/broken/").Return(nil, errors.New("connection reset"))
	remote.EXPECT().PropFind(gomock.Any(), "/ok/").Return([]webdav.Resource{
		dirRes("/ok/"),
		fileRes("/ok/f", "1"),
	}, nil)

	ix, err := BuildRemoteIndex(context.Background(), remote, "/", nil, testLogger())
	require.NoError(t, err)
	assert.True(t, ix.HasDir("/broken/"))
	assert.True(t, ix.HasFile("/ok/f"))
}

func TestBuildRemoteIndex_BadTimestamp(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := NewMockRemote(ctrl)

	remote.EXPECT().PropFind(gomock.Any(), "/").Return([]webdav.Resource{
		{Path: "/weird.txt", LastModified: "yesterday", ContentLength: "0", HasLength: true},
		{Path: "/nodate.txt", ContentLength: "0", HasLength: true},
	}, nil)

	ix, err := BuildRemoteIndex(context.Background(), remote, "/", nil, testLogger())
	require.NoError(t, err)

	for _, p := range []string{"/weird.txt", "/nodate.txt"} {
		f, ok := ix.File(p)
		require.True(t, ok, p)
		assert.Zero(t, f.MTime, p)
	}
}

func TestBuildRemoteIndex_FilterAndOutsideBase(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := NewMockRemote(ctrl)

	filter, err := NewFilter([]string{"*.tmp", "cache"})
	require.NoError(t, err)

	remote.EXPECT().PropFind(gomock.Any(), "/b/").Return([]webdav.Resource{
		dirRes("/b/"),
		dirRes("/b/cache/"),
		fileRes("/b/x.tmp", "1"),
		fileRes("/b/keep.txt", "1"),
		fileRes("/other/y.txt", "1"),
	}, nil)

	ix, err := BuildRemoteIndex(context.Background(), remote, "/b/", filter, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"/keep.txt"}, ix.FilePaths())
	assert.Zero(t, ix.Dirs(), "excluded directory is neither recorded nor listed")
}

func TestBuildRemoteIndex_Cancelled(t *testing.T) {
	ctrl := gomock.NewController(t)
	remote := NewMockRemote(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildRemoteIndex(ctx, remote, "/", nil, testLogger())
	assert.ErrorIs(t, err, context.Canceled)
}
