package errors

import "errors"

// Remote errors.
var (
	ErrRemoteListing    = errors.New("remote listing failed")
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
	ErrNotDAVServer     = errors.New("url does not point at a recognised WebDAV server")
)

// Local and usage errors.
var (
	ErrLocalRoot      = errors.New("local root is not a directory")
	ErrPathTraversal  = errors.New("path escapes sync root")
	ErrInvalidPolicy  = errors.New("invalid sync type, want to, from or both")
	ErrNoPasswordTerm = errors.New("no terminal available for password prompt")
)
