package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/solpm/internal/ir"
)

// Dir serves interface documents from a directory tree laid out as
// <Root>/<network>/<name>/<version>.json.
type Dir struct {
	Root string
}

// Fetch reads one document. "latest" picks the highest semantic version
// present for the program.
//
// Implements engine.Fetcher.
func (d Dir) Fetch(ctx context.Context, name, version string, network ir.Network) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, fmt.Errorf("registry: invalid program name %q", name)
	}
	programDir := filepath.Join(d.Root, string(network), name)

	if IsLatest(version) {
		entries, err := os.ReadDir(programDir)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s on %s", ErrNotFound, name, network)
		}
		if err != nil {
			return nil, err
		}
		var versions []string
		for _, e := range entries {
			if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
				versions = append(versions, strings.TrimSuffix(e.Name(), ".json"))
			}
		}
		version = newest(versions)
		if version == "" {
			return nil, fmt.Errorf("%w: %s on %s has no versions", ErrNotFound, name, network)
		}
	} else if strings.ContainsAny(version, `/\`) {
		return nil, fmt.Errorf("registry: invalid version %q", version)
	}

	data, err := os.ReadFile(filepath.Join(programDir, version+".json"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s@%s on %s", ErrNotFound, name, version, network)
	}
	return data, err
}
