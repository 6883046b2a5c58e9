// Package dirty decides whether a weaving run can be skipped.
// For every output container it records the content hashes of the files the
// run read and of the container it wrote. A later run with the same output is
// up to date while all of those hashes still match, which also keeps an
// in-place output from being woven twice.
package dirty

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultStateFile is where the run state is kept, relative to the project
// root.
const DefaultStateFile = ".weaver/state.json"

const stateVersion = 1

// runState is the recorded state of one output.
type runState struct {
	Output     string            `json:"output"`
	OutputHash string            `json:"output_hash"`
	Inputs     map[string]string `json:"inputs"`
	WovenAt    int64             `json:"woven_at"` // Unix timestamp
}

// stateData is the on-disk JSON structure.
type stateData struct {
	Version int        `json:"version"`
	Runs    []runState `json:"runs"`
}

// Tracker holds the recorded runs, keyed by absolute output path.
type Tracker struct {
	mu   sync.RWMutex
	runs map[string]runState
	path string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStateFile sets the state file path.
func WithStateFile(path string) Option {
	return func(t *Tracker) {
		t.path = path
	}
}

// New creates an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		runs: make(map[string]runState),
		path: DefaultStateFile,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open creates a Tracker and loads its state file, if any.
func Open(opts ...Option) (*Tracker, error) {
	t := New(opts...)
	if err := t.Load(); err != nil {
		return nil, err
	}
	return t, nil
}

// computeHash computes the SHA256 hash of file contents.
func computeHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func hashAll(paths []string) (map[string]string, error) {
	hashes := make(map[string]string, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
		if _, seen := hashes[abs]; seen {
			continue
		}
		h, err := computeHash(abs)
		if err != nil {
			return nil, err
		}
		hashes[abs] = h
	}
	return hashes, nil
}

// Record stores the current hashes of output and inputs. Call it after the
// output has been written; an input that is also the output is recorded with
// its woven content.
func (t *Tracker) Record(output string, inputs ...string) error {
	abs, err := filepath.Abs(output)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	outHash, err := computeHash(abs)
	if err != nil {
		return err
	}
	hashes, err := hashAll(inputs)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs[abs] = runState{
		Output:     abs,
		OutputHash: outHash,
		Inputs:     hashes,
		WovenAt:    time.Now().Unix(),
	}
	return nil
}

// UpToDate reports whether output was recorded from exactly these inputs and
// neither it nor any input changed since. Missing files are never up to date.
func (t *Tracker) UpToDate(output string, inputs ...string) (bool, error) {
	abs, err := filepath.Abs(output)
	if err != nil {
		return false, fmt.Errorf("failed to get absolute path: %w", err)
	}

	t.mu.RLock()
	state, ok := t.runs[abs]
	t.mu.RUnlock()
	if !ok {
		return false, nil
	}

	outHash, err := computeHash(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if outHash != state.OutputHash {
		return false, nil
	}

	hashes, err := hashAll(inputs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}
	if len(hashes) != len(state.Inputs) {
		return false, nil
	}
	for path, h := range hashes {
		if state.Inputs[path] != h {
			return false, nil
		}
	}
	return true, nil
}

// UpToDateContext is UpToDate with context support.
func (t *Tracker) UpToDateContext(ctx context.Context, output string, inputs ...string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
		return t.UpToDate(output, inputs...)
	}
}

// Forget drops the recorded run of output.
func (t *Tracker) Forget(output string) {
	abs, err := filepath.Abs(output)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.runs, abs)
}

// Count returns the number of recorded outputs.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.runs)
}

// Save persists the state to the state file.
func (t *Tracker) Save() error {
	if err := os.MkdirAll(filepath.Dir(t.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	f, err := os.Create(t.path)
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	if err := t.SaveTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load restores the state from the state file. A missing file is an empty
// state.
func (t *Tracker) Load() error {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer f.Close()
	return t.LoadFrom(f)
}

// SaveTo writes the state to w, ordered by output path.
func (t *Tracker) SaveTo(w io.Writer) error {
	t.mu.RLock()
	data := stateData{Version: stateVersion, Runs: make([]runState, 0, len(t.runs))}
	for _, state := range t.runs {
		data.Runs = append(data.Runs, state)
	}
	t.mu.RUnlock()
	sort.Slice(data.Runs, func(i, j int) bool { return data.Runs[i].Output < data.Runs[j].Output })

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	return nil
}

// LoadFrom replaces the state with the one read from r. State written by
// another version is discarded.
func (t *Tracker) LoadFrom(r io.Reader) error {
	var data stateData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode state: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.runs = make(map[string]runState, len(data.Runs))
	if data.Version != stateVersion {
		return nil
	}
	for _, state := range data.Runs {
		t.runs[state.Output] = state
	}
	return nil
}
