package importer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/uirecorder/teststore/pkg/telemetry"
	"github.com/uirecorder/teststore/pkg/testmodel"
)

// Status values recorded per file.
const (
	StatusImported = "imported"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"
)

const defaultDebounce = 500 * time.Millisecond

// Store is the write side the importer needs.
type Store interface {
	WriteTest(ctx context.Context, owner string, test testmodel.Test) (int, error)
}

// Options configures an Importer.
type Options struct {
	// DefaultOwner receives files placed directly under the root.
	DefaultOwner string

	// Debounce is how long Watch waits for a file to go quiet.
	Debounce time.Duration

	Telemetry *telemetry.Telemetry
}

// FileError records why one file could not be imported.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Result summarizes one import pass.
type Result struct {
	Root     string
	Files    int
	Tests    int
	Skipped  int
	Failures []*FileError
}

// Err joins every file failure, or returns nil.
func (r Result) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Importer writes test files into a Store.
type Importer struct {
	store        Store
	defaultOwner string
	debounce     time.Duration
	tel          *telemetry.Telemetry
	logger       *telemetry.Logger

	mu      sync.Mutex
	digests map[string][sha256.Size]byte
	watcher *fsnotify.Watcher
}

// New creates an importer writing to store.
func New(store Store, opts Options) *Importer {
	if opts.DefaultOwner == "" {
		opts.DefaultOwner = testmodel.DefaultOwner
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	tel := opts.Telemetry
	if tel == nil {
		tel = telemetry.NewNop()
	}

	return &Importer{
		store:        store,
		defaultOwner: opts.DefaultOwner,
		debounce:     opts.Debounce,
		tel:          tel,
		logger:       tel.Logger.NewComponentLogger("importer"),
		digests:      make(map[string][sha256.Size]byte),
	}
}

// ImportDir imports every test file under root. Per-file failures are
// collected in the result; the error is only set when root is unusable.
func (im *Importer) ImportDir(ctx context.Context, root string) (Result, error) {
	files, err := im.scan(root)
	if err != nil {
		return Result{Root: root}, err
	}
	return im.importFiles(ctx, root, files), nil
}

// scan lists the .json files at the root and one directory below it.
func (im *Importer) scan(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("failed to stat import root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("import root %s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if depth(root, path) > 1 {
				return filepath.SkipDir
			}
			return nil
		}
		if isTestFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}
	return files, nil
}

func (im *Importer) importFiles(ctx context.Context, root string, files []string) (res Result) {
	res = Result{Root: root}

	op := im.tel.StartOperation(ctx, "importer.import", telemetry.AttrImportDir.String(root))
	defer func() { op.End(res.Err()) }()
	ctx = op.Ctx

	for _, path := range files {
		if ctx.Err() != nil {
			res.Failures = append(res.Failures, &FileError{Path: path, Err: ctx.Err()})
			continue
		}

		res.Files++
		n, err := im.importFile(ctx, root, path)
		switch {
		case errors.Is(err, errUnchanged):
			res.Skipped++
			im.tel.Metrics.RecordImportedFile(StatusSkipped)
		case err != nil:
			im.logger.WithField("path", path).WithError(err).Warn("failed to import file")
			res.Failures = append(res.Failures, &FileError{Path: path, Err: err})
			im.tel.Metrics.RecordImportedFile(StatusFailed)
		default:
			res.Tests += n
			im.tel.Metrics.RecordImportedFile(StatusImported)
		}
	}

	op.Logger.WithFields(map[string]interface{}{
		"root":    root,
		"files":   res.Files,
		"tests":   res.Tests,
		"skipped": res.Skipped,
		"failed":  len(res.Failures),
	}).Info("import finished")
	_ = im.tel.Events.PublishImportCompleted(root, res.Tests, len(res.Failures))
	return res
}

var errUnchanged = errors.New("unchanged since last import")

// importFile writes every test in path and returns how many were written.
func (im *Importer) importFile(ctx context.Context, root, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}

	digest := sha256.Sum256(data)
	im.mu.Lock()
	prev, seen := im.digests[path]
	im.mu.Unlock()
	if seen && prev == digest {
		return 0, errUnchanged
	}

	tests, err := DecodeTests(data)
	if err != nil {
		return 0, err
	}

	// A file is imported whole or not at all, so a bad entry never causes
	// the good ones to be rewritten on every pass.
	for i := range tests {
		if err := tests[i].Validate(); err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
	}

	owner := im.ownerFor(root, path)
	for _, test := range tests {
		version, err := im.store.WriteTest(ctx, owner, test)
		if err != nil {
			return 0, fmt.Errorf("failed to write test %q: %w", test.Name, err)
		}
		im.logger.WithOwner(owner).WithTest(test.Name).Debugf("imported at version %d", version)
	}

	im.mu.Lock()
	im.digests[path] = digest
	im.mu.Unlock()
	return len(tests), nil
}

// DecodeTests accepts a single test object or an array of tests.
func DecodeTests(data []byte) ([]testmodel.Test, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty file")
	}

	if trimmed[0] == '[' {
		var tests []testmodel.Test
		if err := json.Unmarshal(trimmed, &tests); err != nil {
			return nil, fmt.Errorf("failed to parse test list: %w", err)
		}
		return tests, nil
	}

	var test testmodel.Test
	if err := json.Unmarshal(trimmed, &test); err != nil {
		return nil, fmt.Errorf("failed to parse test: %w", err)
	}
	return []testmodel.Test{test}, nil
}

// ownerFor maps a file to its owner from its directory below root.
func (im *Importer) ownerFor(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return im.defaultOwner
	}
	return strings.Split(filepath.ToSlash(rel), "/")[0]
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return len(strings.Split(filepath.ToSlash(rel), "/"))
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func isTestFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json") && !isHidden(filepath.Base(path))
}
