package davsync

import (
	"log/slog"
	"strings"
	"time"

	"github.com/alexjbarnes/dav-sync/internal/tree"
)

// OpKind names one collaborator call.
type OpKind int

const (
	OpMkdirRemote OpKind = iota + 1
	OpMkdirLocal
	OpRmdirRemote
	OpRmdirLocal
	OpUpload
	OpDownload
	OpDeleteRemote
	OpDeleteLocal
	OpSetRemoteMTime
)

func (k OpKind) String() string {
	switch k {
	case OpMkdirRemote:
		return "mkdir-remote"
	case OpMkdirLocal:
		return "mkdir-local"
	case OpRmdirRemote:
		return "rmdir-remote"
	case OpRmdirLocal:
		return "rmdir-local"
	case OpUpload:
		return "upload"
	case OpDownload:
		return "download"
	case OpDeleteRemote:
		return "delete-remote"
	case OpDeleteLocal:
		return "delete-local"
	case OpSetRemoteMTime:
		return "set-remote-mtime"
	default:
		return "unknown"
	}
}

// Op is one planned step. Path is relative to both roots, Remote is the
// same path joined onto the remote base. MTime, in epoch milliseconds,
// is the timestamp to carry across for uploads, downloads and
// SetRemoteMTime.
type Op struct {
	Kind   OpKind
	Path   string
	Remote string
	MTime  int64
}

// Time returns MTime truncated to whole seconds.
func (o Op) Time() time.Time {
	return time.Unix(o.MTime/1000, 0)
}

// LogValue implements slog.LogValuer.
func (o Op) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("op", o.Kind.String()),
		slog.String("path", o.Path),
	}

	if o.MTime != 0 {
		attrs = append(attrs, slog.Int64("mtime", o.MTime/1000))
	}

	return slog.GroupValue(attrs...)
}

type planner struct {
	base string
	ops  []Op
}

func newPlanner(remoteBase string) *planner {
	return &planner{base: remoteBase}
}

func (p *planner) add(kind OpKind, rel string, mtime int64) {
	p.ops = append(p.ops, Op{
		Kind:   kind,
		Path:   rel,
		Remote: tree.Join(p.base, rel),
		MTime:  mtime,
	})
}

// upload emits the three steps that replace or create a remote file.
func (p *planner) upload(e tree.Entry, replace bool) {
	if replace {
		p.add(OpDeleteRemote, e.Path, 0)
	}

	p.add(OpUpload, e.Path, e.MTime)
	p.add(OpSetRemoteMTime, e.Path, e.MTime)
}

// prunedDirs returns the directories of src missing from dst, dropping
// any whose ancestor is already in the result. Removing the ancestor
// takes the descendants with it.
func prunedDirs(src, dst tree.Index) []string {
	var out []string

	for _, d := range src.DirPaths() {
		if dst.HasDir(d) {
			continue
		}

		if n := len(out); n > 0 && strings.HasPrefix(d, out[n-1]) {
			continue
		}

		out = append(out, d)
	}

	return out
}

// planToDirs makes the remote directory set match the local one. A
// remote file standing where a local directory should be is deleted
// first.
func planToDirs(local, remote tree.Index, remoteBase string) []Op {
	p := newPlanner(remoteBase)

	for _, d := range prunedDirs(remote, local) {
		p.add(OpRmdirRemote, d, 0)
	}

	for _, d := range local.DirPaths() {
		if remote.HasDir(d) {
			continue
		}

		if f := strings.TrimSuffix(d, "/"); remote.HasFile(f) {
			p.add(OpDeleteRemote, f, 0)
		}

		p.add(OpMkdirRemote, d, 0)
	}

	return p.ops
}

// planToFiles makes the remote file set match the local one. Files are
// compared on whole seconds; any difference replaces the remote copy.
func planToFiles(local, remote tree.Index, remoteBase string) []Op {
	p := newPlanner(remoteBase)

	for _, f := range local.FilePaths() {
		le, _ := local.File(f)

		re, ok := remote.File(f)
		if !ok {
			p.upload(le, false)
			continue
		}

		if le.Seconds() != re.Seconds() {
			p.upload(le, true)
		}
	}

	for _, f := range remote.FilePaths() {
		if !local.HasFile(f) {
			p.add(OpDeleteRemote, f, 0)
		}
	}

	return p.ops
}

// planFromDirs makes the local directory set match the remote one.
func planFromDirs(local, remote tree.Index, remoteBase string) []Op {
	p := newPlanner(remoteBase)

	for _, d := range prunedDirs(local, remote) {
		p.add(OpRmdirLocal, d, 0)
	}

	for _, d := range remote.DirPaths() {
		if local.HasDir(d) {
			continue
		}

		if f := strings.TrimSuffix(d, "/"); local.HasFile(f) {
			p.add(OpDeleteLocal, f, 0)
		}

		p.add(OpMkdirLocal, d, 0)
	}

	return p.ops
}

// planFromFiles makes the local file set match the remote one.
func planFromFiles(local, remote tree.Index, remoteBase string) []Op {
	p := newPlanner(remoteBase)

	for _, f := range remote.FilePaths() {
		re, _ := remote.File(f)

		le, ok := local.File(f)
		if !ok || le.Seconds() != re.Seconds() {
			p.add(OpDownload, f, re.MTime)
		}
	}

	for _, f := range local.FilePaths() {
		if !remote.HasFile(f) {
			p.add(OpDeleteLocal, f, 0)
		}
	}

	return p.ops
}

// planBothUpload is the first merge pass: missing directories are
// created on both sides, then local files that are new or strictly
// newer go up. Nothing is ever deleted except the remote copy being
// replaced. Paths that are a file on one side and a directory on the
// other are left alone.
func planBothUpload(local, remote tree.Index, remoteBase string) []Op {
	p := newPlanner(remoteBase)

	for _, d := range local.DirPaths() {
		if !remote.HasDir(d) && !remote.HasFile(strings.TrimSuffix(d, "/")) {
			p.add(OpMkdirRemote, d, 0)
		}
	}

	for _, d := range remote.DirPaths() {
		if !local.HasDir(d) && !local.HasFile(strings.TrimSuffix(d, "/")) {
			p.add(OpMkdirLocal, d, 0)
		}
	}

	for _, f := range local.FilePaths() {
		le, _ := local.File(f)

		re, ok := remote.File(f)

		switch {
		case ok && le.Seconds() > re.Seconds():
			p.upload(le, true)
		case !ok && !remote.HasDir(f):
			p.upload(le, false)
		}
	}

	return p.ops
}

// planBothDownload is the second merge pass, run against the refreshed
// remote tree: remote files that are new or strictly newer come down.
func planBothDownload(local, remote tree.Index, remoteBase string) []Op {
	p := newPlanner(remoteBase)

	for _, f := range remote.FilePaths() {
		re, _ := remote.File(f)

		le, ok := local.File(f)

		switch {
		case ok && re.Seconds() > le.Seconds():
			p.add(OpDownload, f, re.MTime)
		case !ok && !local.HasDir(f):
			p.add(OpDownload, f, re.MTime)
		}
	}

	return p.ops
}

// countByKind tallies ops by kind name.
func countByKind(ops []Op, into map[string]int) {
	for _, op := range ops {
		into[op.Kind.String()]++
	}
}
