package domain

import "time"

// NodeKind represents the type of a remote tree entry
type NodeKind int

const (
	KindFile NodeKind = iota
	KindDirectory
)

// SizeUnknown marks a RemoteNode whose listing did not expose a byte size
const SizeUnknown int64 = -1

// RemoteNode represents one entry discovered in the remote archive tree.
// Immutable once yielded by the walker; consumed once by the planner.
type RemoteNode struct {
	// Path is the slash-separated path relative to the archive root
	Path string

	// Kind indicates if this is a file or a directory
	Kind NodeKind

	// SizeHint in bytes, SizeUnknown if the listing did not expose it
	SizeHint int64
}

// IsDir returns true if this node is a directory
func (n RemoteNode) IsDir() bool {
	return n.Kind == KindDirectory
}

// IsFile returns true if this node is a regular file
func (n RemoteNode) IsFile() bool {
	return n.Kind == KindFile
}

// LocalEntry represents one regular file already present under the
// destination root. Built once per run by the snapshot scan.
type LocalEntry struct {
	// Path is the relative path, same addressing space as RemoteNode
	Path string

	// Size on disk in bytes
	Size int64

	// ModTime is the last modification time
	ModTime time.Time
}
