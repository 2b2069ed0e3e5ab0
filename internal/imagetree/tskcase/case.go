package tskcase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"medialog/internal/imagetree"
)

// Object types from TSK_DB_OBJECT_TYPE_ENUM.
const (
	objectImage      = 0
	objectVolumeSys  = 1
	objectVolume     = 2
	objectFileSystem = 3
	objectFile       = 4
	objectPool       = 7
)

// File types and metadata types recorded in tsk_files.
const (
	fileTypeFS            = 0
	fileTypeUnallocBlocks = 4
	fileTypeUnusedBlocks  = 5
	fileTypeVirtualDir    = 6
	metaTypeReg           = 1
)

// Image types from TSK_IMG_TYPE_ENUM that are plain byte-for-byte images.
const (
	imageTypeRaw      = 0x0001
	imageTypeRawSplit = 0x0002
)

// Case is an open Sleuthkit case database.
type Case struct {
	db   *sql.DB
	path string

	mu     sync.Mutex
	images map[int64]*segmentReader
}

var _ imagetree.Source = (*Case)(nil)

// Open opens the case database read-only.
func Open(ctx context.Context, path string) (*Case, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("tskcase: empty case path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("tskcase: resolve path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("tskcase: stat case: %w", err)
	}

	dsn := (&url.URL{Scheme: "file", Path: abs, RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tskcase: open case db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tskcase: open case db: %w", err)
	}
	var tables int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name IN ('tsk_objects','tsk_files','tsk_image_names')",
	).Scan(&tables); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tskcase: inspect schema: %w", err)
	}
	if tables != 3 {
		_ = db.Close()
		return nil, fmt.Errorf("tskcase: %s is not a sleuthkit case database", abs)
	}

	return &Case{db: db, path: abs, images: make(map[int64]*segmentReader)}, nil
}

// Close releases the database and any open image segments.
func (c *Case) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	var errs []error
	for id, reader := range c.images {
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.images, id)
	}
	c.mu.Unlock()
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Images lists every image in the case ordered by object id.
func (c *Case) Images(ctx context.Context) ([]imagetree.Image, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT obj_id, name FROM tsk_image_names WHERE sequence = 0 ORDER BY obj_id")
	if err != nil {
		return nil, fmt.Errorf("tskcase: list images: %w", err)
	}
	defer rows.Close()

	var images []imagetree.Image
	for rows.Next() {
		var img imagetree.Image
		if err := rows.Scan(&img.ID, &img.Name); err != nil {
			return nil, fmt.Errorf("tskcase: scan image: %w", err)
		}
		img.Name = filepath.Base(img.Name)
		img.Source = c.path
		images = append(images, img)
	}
	return images, rows.Err()
}

// OpenImage returns the direct children of the image object (volume systems or
// file systems) as traversal roots.
func (c *Case) OpenImage(ctx context.Context, id int64) ([]imagetree.Node, error) {
	var name string
	if err := c.db.QueryRowContext(ctx,
		"SELECT name FROM tsk_image_names WHERE obj_id = ? AND sequence = 0", id,
	).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tskcase: image %d not found", id)
		}
		return nil, fmt.Errorf("tskcase: load image %d: %w", id, err)
	}
	root := &node{
		c:       c,
		imageID: id,
		id:      id,
		objType: objectImage,
		name:    filepath.Base(name),
		path:    "/img_" + filepath.Base(name),
	}
	return root.Children(ctx)
}

// imageReader lazily opens the segments backing an image.
func (c *Case) imageReader(ctx context.Context, imageID int64) (*segmentReader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if reader, ok := c.images[imageID]; ok {
		return reader, nil
	}

	var imgType sql.NullInt64
	err := c.db.QueryRowContext(ctx, "SELECT type FROM tsk_image_info WHERE obj_id = ?", imageID).Scan(&imgType)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load image info: %w", err)
	}
	if imgType.Valid && imgType.Int64 != imageTypeRaw && imgType.Int64 != imageTypeRawSplit {
		return nil, fmt.Errorf("image type 0x%x is not a raw image", imgType.Int64)
	}

	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM tsk_image_names WHERE obj_id = ? ORDER BY sequence", imageID)
	if err != nil {
		return nil, fmt.Errorf("list image segments: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan image segment: %w", err)
		}
		names = append(names, c.resolveSegment(name))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reader, err := openSegments(names)
	if err != nil {
		return nil, err
	}
	c.images[imageID] = reader
	return reader, nil
}

// resolveSegment falls back to the case directory when an image was moved
// alongside its case database.
func (c *Case) resolveSegment(name string) string {
	if _, err := os.Stat(name); err == nil {
		return name
	}
	local := filepath.Join(filepath.Dir(c.path), filepath.Base(name))
	if _, err := os.Stat(local); err == nil {
		return local
	}
	return name
}
