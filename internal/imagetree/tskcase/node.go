package tskcase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"

	"medialog/internal/imagetree"
)

type node struct {
	c        *Case
	imageID  int64
	id       int64
	objType  int
	fileType int
	metaType int
	name     string
	size     int64
	md5      string
	path     string
	children int
	parent   *node
}

func (n *node) ID() int64 { return n.id }
func (n *node) Name() string { return n.name }
func (n *node) Size() int64 { return n.size }
func (n *node) StoredDigest() string { return n.md5 }
func (n *node) UniquePath() string { return n.path }
func (n *node) HasChildren() bool { return n.children > 0 }

func (n *node) Parent() imagetree.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

// IsFile matches regular file system files only; carved, unallocated, and
// virtual entries are traversed but not staged.
func (n *node) IsFile() bool {
	return n.objType == objectFile && n.fileType == fileTypeFS && n.metaType == metaTypeReg
}

func (n *node) Children(ctx context.Context) ([]imagetree.Node, error) {
	rows, err := n.c.db.QueryContext(ctx, `
		SELECT o.obj_id, o.type,
		       COALESCE(f.name, ''), COALESCE(f.type, -1), COALESCE(f.meta_type, 0),
		       COALESCE(f.size, 0), f.md5,
		       (SELECT COUNT(1) FROM tsk_objects c WHERE c.par_obj_id = o.obj_id)
		FROM tsk_objects o
		LEFT JOIN tsk_files f ON f.obj_id = o.obj_id
		WHERE o.par_obj_id = ? AND o.type IN (?, ?, ?, ?, ?)
		  AND COALESCE(f.type, -1) NOT IN (?, ?, ?)
		ORDER BY o.obj_id`,
		n.id, objectVolumeSys, objectVolume, objectFileSystem, objectFile, objectPool,
		fileTypeUnallocBlocks, fileTypeUnusedBlocks, fileTypeVirtualDir)
	if err != nil {
		return nil, fmt.Errorf("tskcase: list children of %d: %w", n.id, err)
	}
	defer rows.Close()

	var out []imagetree.Node
	for rows.Next() {
		child := &node{c: n.c, imageID: n.imageID, parent: n}
		var md5 sql.NullString
		if err := rows.Scan(&child.id, &child.objType, &child.name, &child.fileType,
			&child.metaType, &child.size, &md5, &child.children); err != nil {
			return nil, fmt.Errorf("tskcase: scan child of %d: %w", n.id, err)
		}
		if child.name == "." || child.name == ".." {
			continue
		}
		child.md5 = md5.String
		child.path = n.childPath(child)
		out = append(out, child)
	}
	return out, rows.Err()
}

func (n *node) childPath(child *node) string {
	switch child.objType {
	case objectVolumeSys:
		return n.path
	case objectVolume:
		child.name = "vol_" + strconv.FormatInt(child.id, 10)
		return n.path + "/" + child.name
	case objectFileSystem, objectPool:
		return n.path
	}
	if child.name == "" {
		return n.path
	}
	return n.path + "/" + child.name
}

// Open reassembles the file from its layout runs.
func (n *node) Open(ctx context.Context) (io.ReadCloser, error) {
	if !n.IsFile() {
		return nil, fmt.Errorf("tskcase: %s has no byte stream", n.path)
	}
	rows, err := n.c.db.QueryContext(ctx,
		"SELECT byte_start, byte_len FROM tsk_file_layout WHERE obj_id = ? ORDER BY sequence", n.id)
	if err != nil {
		return nil, fmt.Errorf("tskcase: load layout for %s: %w", n.path, err)
	}
	type run struct{ start, length int64 }
	var runs []run
	for rows.Next() {
		var r run
		if err := rows.Scan(&r.start, &r.length); err != nil {
			rows.Close()
			return nil, fmt.Errorf("tskcase: scan layout for %s: %w", n.path, err)
		}
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if n.size == 0 {
		return io.NopCloser(&emptyReader{}), nil
	}
	if len(runs) == 0 {
		return nil, errors.New("tskcase: file content is not addressable (no layout runs recorded)")
	}

	image, err := n.c.imageReader(ctx, n.imageID)
	if err != nil {
		return nil, fmt.Errorf("tskcase: open image for %s: %w", n.path, err)
	}
	readers := make([]io.Reader, 0, len(runs))
	for _, r := range runs {
		readers = append(readers, io.NewSectionReader(image, r.start, r.length))
	}
	return io.NopCloser(io.LimitReader(io.MultiReader(readers...), n.size)), nil
}

type emptyReader struct{}

func (emptyReader) Read([]byte) (int, error) { return 0, io.EOF }
