package capture

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Export writes the retained artifact into dir under its canonical
// filename, creating the directory if needed, and returns the full
// path. Without an artifact it fails with ErrNoArtifact.
func (p *Pipeline) Export(dir string) (string, error) {
	art, ok := p.Artifact()
	if !ok {
		return "", ErrNoArtifact
	}
	return p.exportArtifact(art, dir)
}

func (p *Pipeline) exportArtifact(art Artifact, dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("capture: export directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("capture: creating export directory: %w", err)
	}

	path := filepath.Join(dir, art.Filename())
	if err := os.WriteFile(path, art.Data, 0644); err != nil {
		return "", fmt.Errorf("capture: writing artifact: %w", err)
	}

	p.exports.Add(1)
	slog.Info("capture: artifact exported", "path", path, "bytes", len(art.Data))
	return path, nil
}
