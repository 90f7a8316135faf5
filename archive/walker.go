// Package archive visits files stored in zip archives.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrUnsafePath is returned for entries which would escape destination
// directory if extracted.
var ErrUnsafePath = errors.New("unsafe path in archive")

// WalkFunc is called for every selected file. The archive argument is the
// path passed to Walk. Returning an error stops the walk.
type WalkFunc func(archive string, file *zip.File) error

// Walk calls walkFn for each regular file in archive located at or under
// prefix, in archive order. Prefix is matched by whole path segments, so
// "pages" selects "pages/a.json" but not "pages2/a.json". Empty prefix selects
// everything.
func Walk(ctx context.Context, archive, prefix string, walkFn WalkFunc) error {
	// insecure names are reported below, per entry
	r, err := zip.OpenReader(archive)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return err
	}
	defer r.Close()

	prefix = strings.Trim(prefix, "/")
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := f.FileHeader.Name
		if !isSafePath(name) {
			return fmt.Errorf("zip entry %q: %w", name, ErrUnsafePath)
		}
		if f.FileInfo().IsDir() || !underPrefix(name, prefix) {
			continue
		}
		if err := walkFn(archive, f); err != nil {
			return err
		}
	}
	return nil
}

func underPrefix(name, prefix string) bool {
	if len(prefix) == 0 || name == prefix {
		return true
	}
	return strings.HasPrefix(name, prefix+"/")
}

// isSafePath rejects absolute names and names with ".." components.
func isSafePath(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, `\`) || strings.Contains(name, `:\`) {
		return false
	}
	for part := range strings.SplitSeq(strings.ReplaceAll(name, `\`, "/"), "/") {
		if part == ".." {
			return false
		}
	}
	return true
}
