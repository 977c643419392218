package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirSource reads artifacts from a Hardhat "artifacts" or Foundry "out"
// directory. An artifact is the single file named <Contract>.json anywhere
// under the root.
type DirSource struct {
	root  string
	cache map[string]*Artifact
}

func NewDirSource(root string) *DirSource {
	return &DirSource{root: root, cache: make(map[string]*Artifact)}
}

func (d *DirSource) Load(ctx context.Context, name string) (*Artifact, error) {
	if a, ok := d.cache[name]; ok {
		return a, nil
	}

	path, err := d.find(ctx, name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	a, err := Parse(name, data)
	if err != nil {
		return nil, err
	}
	d.cache[name] = a
	return a, nil
}

func (d *DirSource) find(ctx context.Context, name string) (string, error) {
	target := name + ".json"
	var matches []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() && entry.Name() == "build-info" {
			return filepath.SkipDir
		}
		if !entry.IsDir() && entry.Name() == target {
			matches = append(matches, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("artifacts directory %s: %w", d.root, ErrArtifactNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to search artifacts in %s: %w", d.root, err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%s in %s: %w", name, d.root, ErrArtifactNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("ambiguous artifact %s, found %v", name, matches)
	}
}
