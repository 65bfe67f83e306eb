package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uirecorder/teststore/pkg/stores"
	"github.com/uirecorder/teststore/pkg/telemetry"
	"github.com/uirecorder/teststore/pkg/testmodel"
)

type written struct {
	owner string
	name  string
}

// recordingStore remembers every write and fails tests named "reject".
type recordingStore struct {
	mu     sync.Mutex
	writes []written
}

func (s *recordingStore) WriteTest(_ context.Context, owner string, test testmodel.Test) (int, error) {
	if test.Name == "reject" {
		return 0, errors.New("rejected")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, written{owner: owner, name: test.Name})
	return 1, nil
}

func (s *recordingStore) snapshot() []written {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]written(nil), s.writes...)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestImportDirOwnerLayout(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "login.json"), `{"name":"login","active":true,"steps":[{"id":"tap"}]}`)
	writeFile(t, filepath.Join(root, "pixel-7", "suite.json"), `[{"name":"checkout"},{"name":"search"}]`)
	writeFile(t, filepath.Join(root, "pixel-7", "notes.txt"), `not a test`)
	writeFile(t, filepath.Join(root, "pixel-7", "nested", "deep.json"), `{"name":"deep"}`)
	writeFile(t, filepath.Join(root, ".cache", "hidden.json"), `{"name":"hidden"}`)

	store := &recordingStore{}
	im := New(store, Options{})

	res, err := im.ImportDir(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, 3, res.Tests)
	assert.Empty(t, res.Failures)
	assert.NoError(t, res.Err())

	assert.ElementsMatch(t, []written{
		{owner: testmodel.DefaultOwner, name: "login"},
		{owner: "pixel-7", name: "checkout"},
		{owner: "pixel-7", name: "search"},
	}, store.snapshot())
}

func TestImportDirCollectsFailures(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "good.json"), `{"name":"good"}`)
	writeFile(t, filepath.Join(root, "broken.json"), `{"name":`)
	writeFile(t, filepath.Join(root, "empty.json"), ``)
	writeFile(t, filepath.Join(root, "rejected.json"), `{"name":"reject"}`)

	tel := telemetry.NewNop()
	metrics, err := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: true, Namespace: "test"})
	require.NoError(t, err)
	tel.Metrics = metrics

	var events []telemetry.Event
	tel.Events, err = telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	require.NoError(t, err)
	tel.Events.Subscribe(func(e telemetry.Event) { events = append(events, e) }, nil)

	im := New(&recordingStore{}, Options{DefaultOwner: "ci", Telemetry: tel})
	res, err := im.ImportDir(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Files)
	assert.Equal(t, 1, res.Tests)
	require.Len(t, res.Failures, 3)
	assert.Error(t, res.Err())

	expected := `
# HELP test_imported_files_total Total number of test definition files processed by the importer
# TYPE test_imported_files_total counter
test_imported_files_total{status="failed"} 3
test_imported_files_total{status="imported"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "test_imported_files_total"))

	require.Len(t, events, 1)
	assert.Equal(t, telemetry.EventTypeImportCompleted, events[0].Type)
	assert.Equal(t, 3, events[0].Data["failed"])
	assert.Equal(t, telemetry.EventLevelWarning, events[0].Level)
}

func TestImportDirSkipsUnchangedFiles(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "login.json")
	writeFile(t, path, `{"name":"login"}`)

	store := &recordingStore{}
	im := New(store, Options{})
	ctx := context.Background()

	_, err := im.ImportDir(ctx, root)
	require.NoError(t, err)

	res, err := im.ImportDir(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, store.snapshot(), 1)

	writeFile(t, path, `{"name":"login","active":true}`)
	res, err = im.ImportDir(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Tests)
	assert.Len(t, store.snapshot(), 2)
}

func TestImportDirInvalidRoot(t *testing.T) {
	im := New(&recordingStore{}, Options{})

	_, err := im.ImportDir(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "file.json")
	writeFile(t, file, `{}`)
	_, err = im.ImportDir(context.Background(), file)
	assert.Error(t, err)
}

func TestImportIntoSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store, err := stores.Open(ctx, stores.Config{Path: filepath.Join(t.TempDir(), "import.db")})
	require.NoError(t, err)
	defer store.Close()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pixel-7", "login.json"),
		`{"name":"login","version":4,"steps":[{"id":"tap","image":"aW1hZ2U="}]}`)

	res, err := New(store, Options{}).ImportDir(ctx, root)
	require.NoError(t, err)
	require.NoError(t, res.Err())

	test, err := store.GetTest(ctx, "pixel-7", "login")
	require.NoError(t, err)
	assert.Equal(t, 5, test.Version)
	assert.Empty(t, test.Steps[0].Image)
}

func TestWatchReimportsChangedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "pixel-7"), 0o755))

	store := &recordingStore{}
	im := New(store, Options{Debounce: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan Result, 4)
	require.NoError(t, im.Watch(ctx, root, func(r Result) { results <- r }))
	defer im.StopWatching()

	writeFile(t, filepath.Join(root, "pixel-7", "login.json"), `{"name":"login"}`)

	select {
	case res := <-results:
		assert.Equal(t, 1, res.Tests)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch import")
	}

	assert.Equal(t, []written{{owner: "pixel-7", name: "login"}}, store.snapshot())
}

func TestWatchMissingRoot(t *testing.T) {
	im := New(&recordingStore{}, Options{})
	err := im.Watch(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
	assert.Error(t, err)
}

func TestImportFileWithInvalidEntryWritesNothing(t *testing.T) {
	ctx := context.Background()
	store, err := stores.Open(ctx, stores.Config{Path: filepath.Join(t.TempDir(), "import.db")})
	require.NoError(t, err)
	defer store.Close()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "suite.json"),
		`[{"name":"login","steps":[{"id":"tap"}]},{"steps":[]}]`)

	im := New(store, Options{})
	for pass := 0; pass < 3; pass++ {
		res, err := im.ImportDir(ctx, root)
		require.NoError(t, err)
		require.Len(t, res.Failures, 1)
		assert.Equal(t, 0, res.Tests)
	}

	_, err = store.GetTest(ctx, testmodel.DefaultOwner, "login")
	assert.ErrorIs(t, err, stores.ErrNotFound)

	// Once the file is fixed it is imported exactly once.
	writeFile(t, filepath.Join(root, "suite.json"),
		`[{"name":"login","steps":[{"id":"tap"}]},{"name":"search"}]`)
	for pass := 0; pass < 3; pass++ {
		_, err := im.ImportDir(ctx, root)
		require.NoError(t, err)
	}

	test, err := store.GetTest(ctx, testmodel.DefaultOwner, "login")
	require.NoError(t, err)
	assert.Equal(t, 1, test.Version)
}
