package render

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/overdrive/internal/fsutil"
	"github.com/banshee-data/overdrive/internal/security"
	"github.com/banshee-data/overdrive/internal/track"
)

// Export writes <name>.png and <name>.html for rm into dir, creating dir
// if needed. name is sanitized into a single file name element. It
// returns the paths written.
func Export(fsys fsutil.FileSystem, dir, name string, rm *track.Roadmap) ([]string, error) {
	if rm.Len() == 0 {
		return nil, ErrEmptyRoadmap
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create plot dir: %w", err)
	}

	base := security.SanitizeFilename(name)
	outputs := []struct {
		ext string
		fn  func(io.Writer, *track.Roadmap, string) error
	}{
		{".png", PlotPNG},
		{".html", ChartHTML},
	}
	paths := make([]string, 0, len(outputs))
	for _, o := range outputs {
		path := filepath.Join(dir, base+o.ext)
		if err := writeFile(fsys, path, func(w io.Writer) error { return o.fn(w, rm, name) }); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(fsys fsutil.FileSystem, path string, fill func(io.Writer) error) error {
	f, err := fsys.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
