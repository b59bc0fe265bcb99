// Package registry reads and writes the model-registry JSON manifest
// (spec.md §6): per-model metadata plus the on-disk files that back
// it, each path validated to stay within the registry's cache root
// before it is ever opened.
package registry

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// FileEntry describes one file backing a registered model.
type FileEntry struct {
	Path      string `json:"path"`
	SHA256    string `json:"sha256"`
	SizeBytes int64  `json:"size_bytes"`
}

// Manifest is one model's registry record, spec.md §6's persisted
// state verbatim.
type Manifest struct {
	ModelID          string      `json:"model_id"`
	DisplayName      string      `json:"display_name"`
	Format           string      `json:"format"`
	Source           string      `json:"source"`
	CreatedUTC       string      `json:"created_utc"`
	Quantization     string      `json:"quantization"`
	TokenizerID      string      `json:"tokenizer_id"`
	MaxContextTokens int         `json:"max_context_tokens"`
	Files            []FileEntry `json:"files"`
	Notes            string      `json:"notes"`
}

// Root is a registry cache directory: a tree of per-model manifest
// JSON files plus the model/tokenizer files they describe.
type Root struct {
	dir string
}

// Open validates dir exists and returns a Root rooted there.
func Open(dir string) (*Root, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, validationf("%s is not a directory", dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &Root{dir: abs}, nil
}

func (r *Root) manifestPath(modelID string) (string, error) {
	return r.resolve(modelID + ".json")
}

// resolve joins rel onto the cache root and rejects any path that
// would escape it, the same filepath.Rel+IsLocal check the teacher
// uses before trusting a model directory's file list.
func (r *Root) resolve(rel string) (string, error) {
	joined := filepath.Join(r.dir, rel)

	relBack, err := filepath.Rel(r.dir, joined)
	if err != nil {
		return "", validationf("%s: %v", rel, err)
	}
	if !filepath.IsLocal(relBack) {
		return "", validationf("insecure path: %s", rel)
	}
	return joined, nil
}

// Load reads and validates modelID's manifest, checking every file
// entry's path resolves within the cache root.
func (r *Root) Load(modelID string) (*Manifest, error) {
	path, err := r.manifestPath(modelID)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, validationf("%s: decoding manifest: %v", modelID, err)
	}

	for _, fe := range m.Files {
		if _, err := r.resolve(fe.Path); err != nil {
			return nil, err
		}
	}

	return &m, nil
}

// ResolveFile returns the absolute, cache-root-bounded path for one of
// a manifest's declared files.
func (r *Root) ResolveFile(fe FileEntry) (string, error) {
	return r.resolve(fe.Path)
}

// Save writes m's manifest JSON to modelID's manifest path, validating
// every file entry's path first.
func (r *Root) Save(modelID string, m Manifest) error {
	for _, fe := range m.Files {
		if _, err := r.resolve(fe.Path); err != nil {
			return err
		}
	}

	path, err := r.manifestPath(modelID)
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// List returns every model ID with a manifest in the cache root.
func (r *Root) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, e.Name()[:len(e.Name())-len(".json")])
	}
	return ids, nil
}

// HashFiles computes the sha256 of each of the given paths
// concurrently, bounded by GOMAXPROCS-1 (at least 1), mirroring the teacher's own
// parallel per-file digest loop.
func HashFiles(paths []string) (map[string]string, error) {
	digests := make(map[string]string, len(paths))

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(max(runtime.GOMAXPROCS(0)-1, 1))
	for _, p := range paths {
		g.Go(func() error {
			sum, err := sha256File(p)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			digests[p] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return digests, nil
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", h.Sum(nil)), nil
}
