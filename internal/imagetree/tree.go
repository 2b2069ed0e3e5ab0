package imagetree

import (
	"context"
	"io"
)

// Node is one entry (file or container) in an image's logical tree.
type Node interface {
	ID() int64
	Name() string
	// Parent returns the parent node, or nil for roots.
	Parent() Node
	Size() int64
	// StoredDigest returns the MD5 recorded by the image collaborator as lowercase
	// or uppercase hex. Empty when no digest was recorded.
	StoredDigest() string
	// UniquePath is the node's logical path, unique within the source.
	UniquePath() string
	// IsFile reports whether the node carries a byte stream worth staging.
	IsFile() bool
	HasChildren() bool
	Children(ctx context.Context) ([]Node, error)
	// Open returns a fresh reader over the node's logical byte stream.
	Open(ctx context.Context) (io.ReadCloser, error)
}

// Image identifies one image within a Source.
type Image struct {
	ID   int64
	Name string
	// Source is a human description of where the image came from (case path, directory).
	Source string
}

// Source supplies images and their root nodes. Opened read-only.
type Source interface {
	Images(ctx context.Context) ([]Image, error)
	OpenImage(ctx context.Context, id int64) ([]Node, error)
	Close() error
}
