// Recommender - Product Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommender

package storage

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/recommender/internal/recommend/algorithms"
)

// ErrNoModel is returned when no loadable checkpoint exists for a model.
var ErrNoModel = errors.New("storage: no saved model")

const fileSuffix = ".gob.gz"

var validName = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// ModelMetadata describes one saved model generation.
type ModelMetadata struct {
	// Name is the algorithm name, e.g. "als".
	Name string `json:"name"`

	// Version is the engine's snapshot version at save time.
	Version int64 `json:"version"`

	TrainedAt time.Time `json:"trained_at"`
	SavedAt   time.Time `json:"saved_at"`

	// Interactions is the history size the model was trained on.
	Interactions int `json:"interactions"`
	Users        int `json:"users"`
	Items        int `json:"items"`

	// Checksum is the SHA-256 of the uncompressed state.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed state size.
	SizeBytes int64 `json:"size_bytes"`

	TrainingDurationMS int64 `json:"training_duration_ms"`
}

// storedFile is the on-disk layout: gob(storedFile{meta, gzip(gob(state))}).
type storedFile struct {
	Metadata       ModelMetadata
	CompressedData []byte
}

// Store keeps model checkpoints as {name}_v{version}.gob.gz files in one
// directory. Writes go through a temp file and rename, so readers never see
// a partial checkpoint.
type Store struct {
	baseDir string
	mu      sync.RWMutex
}

// NewStore creates baseDir if needed.
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, errors.New("storage: directory is empty")
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Dir returns the checkpoint directory.
func (s *Store) Dir() string {
	return s.baseDir
}

// Save writes state under meta.Name and meta.Version, filling in the
// checksum, size and save time.
//
//nolint:gocritic // meta passed by value so the caller's copy is untouched
func (s *Store) Save(ctx context.Context, state *algorithms.ALSState, meta ModelMetadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validName.MatchString(meta.Name) {
		return fmt.Errorf("storage: invalid model name %q", meta.Name)
	}
	if meta.Version < 1 {
		return fmt.Errorf("storage: version must be positive, got %d", meta.Version)
	}
	if state == nil {
		return errors.New("storage: nil state")
	}

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(state); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	sum := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return fmt.Errorf("compress model: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression: %w", err)
	}

	meta.Checksum = hex.EncodeToString(sum[:])
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.baseDir, ".checkpoint-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()        //nolint:errcheck // already failing
			_ = os.Remove(tmpName) //nolint:errcheck // best effort
		}
	}()

	if err := gob.NewEncoder(tmp).Encode(storedFile{Metadata: meta, CompressedData: compressed.Bytes()}); err != nil {
		return fmt.Errorf("write model file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync model file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model file: %w", err)
	}
	if err := os.Rename(tmpName, s.modelPath(meta.Name, meta.Version)); err != nil {
		return fmt.Errorf("publish model file: %w", err)
	}
	committed = true
	return nil
}

// Load reads one version. Version 0 means the newest on disk.
func (s *Store) Load(ctx context.Context, name string, version int64) (*algorithms.ALSState, *ModelMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		versions, err := s.versions(name)
		if err != nil {
			return nil, nil, err
		}
		if len(versions) == 0 {
			return nil, nil, fmt.Errorf("%w: %s", ErrNoModel, name)
		}
		version = versions[0]
	}
	return s.read(name, version)
}

// LoadLatest returns the newest checkpoint that reads back intact, skipping
// corrupt or truncated files. The skipped errors are joined into the
// returned error only when nothing loads.
func (s *Store) LoadLatest(ctx context.Context, name string) (*algorithms.ALSState, *ModelMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, err := s.versions(name)
	if err != nil {
		return nil, nil, err
	}

	var errs []error
	for _, v := range versions {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		state, meta, err := s.read(name, v)
		if err == nil {
			return state, meta, nil
		}
		errs = append(errs, err)
	}
	return nil, nil, errors.Join(append([]error{fmt.Errorf("%w: %s", ErrNoModel, name)}, errs...)...)
}

// LatestVersion returns the highest version on disk.
func (s *Store) LatestVersion(name string) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, err := s.versions(name)
	if err != nil || len(versions) == 0 {
		return 0, false
	}
	return versions[0], true
}

// Prune deletes all but the newest keep versions of name and returns how
// many files were removed.
func (s *Store) Prune(ctx context.Context, name string, keep int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if keep < 1 {
		keep = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	versions, err := s.versions(name)
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, v := range versions[min(keep, len(versions)):] {
		if err := os.Remove(s.modelPath(name, v)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (s *Store) read(name string, version int64) (*algorithms.ALSState, *ModelMetadata, error) {
	path := s.modelPath(name, version)
	f, err := os.Open(path) //nolint:gosec // path is built from a validated name
	if err != nil {
		return nil, nil, fmt.Errorf("open model file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, nil, fmt.Errorf("decompress %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // in-memory reader

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, nil, fmt.Errorf("decompress %s: %w", filepath.Base(path), err)
	}

	sum := sha256.Sum256(raw)
	if got := hex.EncodeToString(sum[:]); got != sf.Metadata.Checksum {
		return nil, nil, fmt.Errorf("%s: checksum mismatch: expected %s, got %s",
			filepath.Base(path), sf.Metadata.Checksum, got)
	}

	var state algorithms.ALSState
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&state); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return &state, &sf.Metadata, nil
}

// versions lists the versions of name on disk, newest first.
func (s *Store) versions(name string) ([]int64, error) {
	if !validName.MatchString(name) {
		return nil, fmt.Errorf("storage: invalid model name %q", name)
	}
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	var out []int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		alg, v, ok := parseModelFilename(entry.Name())
		if ok && alg == name {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	slices.Reverse(out)
	return out, nil
}

// parseModelFilename splits "als_v12.gob.gz" into ("als", 12).
func parseModelFilename(filename string) (name string, version int64, ok bool) {
	base, found := strings.CutSuffix(filename, fileSuffix)
	if !found {
		return "", 0, false
	}
	i := strings.LastIndex(base, "_v")
	if i <= 0 {
		return "", 0, false
	}
	version, err := strconv.ParseInt(base[i+2:], 10, 64)
	if err != nil || version < 1 {
		return "", 0, false
	}
	return base[:i], version, true
}

func (s *Store) modelPath(name string, version int64) string {
	return filepath.Join(s.baseDir, fmt.Sprintf("%s_v%d%s", name, version, fileSuffix))
}
