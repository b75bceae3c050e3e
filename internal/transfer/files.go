package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/MimeLyc/study-assistant/pkg/file"
)

// File is one document to upload.
type File struct {
	Name    string
	Content []byte
}

func (f File) IsPDF() bool {
	return file.IsPDF(f.Name)
}

// NewFile reads r fully into a File named name.
func NewFile(name string, r io.Reader) (File, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", name, err)
	}
	return File{Name: filepath.Base(name), Content: content}, nil
}

// LoadFiles reads local files concurrently. The result keeps the order of
// paths; the first read error cancels the rest.
func LoadFiles(ctx context.Context, paths ...string) ([]File, error) {
	files := make([]File, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			files[i] = File{Name: filepath.Base(path), Content: content}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
