package stores

import (
	"context"

	"github.com/uirecorder/teststore/pkg/telemetry"
	"github.com/uirecorder/teststore/pkg/testmodel"
)

// TestStore is the typed storage surface the Adapter delegates to.
type TestStore interface {
	ReadTests(ctx context.Context, owner string) ([]testmodel.PendingTest, error)
	WriteTest(ctx context.Context, owner string, test testmodel.Test) (int, error)
	SubmitReport(ctx context.Context, owner string, report testmodel.Report) (int64, error)
}

var (
	_ TestStore = (*SQLiteStore)(nil)

	_ testmodel.TestReader   = (*Adapter)(nil)
	_ testmodel.TestWriter   = (*Adapter)(nil)
	_ testmodel.TestReporter = (*Adapter)(nil)
)

// Adapter plugs a TestStore into a host test runner. It never returns an
// error: failures are logged and reported as an empty list or false, so a
// storage problem cannot take the runner down. Callers that need to tell
// "no tests" from "read failed" should use the TestStore directly.
type Adapter struct {
	store        TestStore
	defaultOwner string
	logger       *telemetry.Logger
}

// NewAdapter creates an adapter. defaultOwner is used when the context
// carries no owner; empty means testmodel.DefaultOwner.
func NewAdapter(store TestStore, defaultOwner string, logger *telemetry.Logger) *Adapter {
	if logger == nil {
		logger = telemetry.NewNopLogger()
	}
	return &Adapter{
		store:        store,
		defaultOwner: defaultOwner,
		logger:       logger.NewComponentLogger("adapter"),
	}
}

func (a *Adapter) owner(ctx context.Context) string {
	return testmodel.OwnerFromContext(ctx, a.defaultOwner)
}

// ReadTests implements testmodel.TestReader.
func (a *Adapter) ReadTests(ctx context.Context) []testmodel.PendingTest {
	owner := a.owner(ctx)
	pending, err := a.store.ReadTests(ctx, owner)
	if err != nil {
		a.logger.WithOwner(owner).WithError(err).Error("failed to read tests")
		return []testmodel.PendingTest{}
	}
	return pending
}

// WriteTest implements testmodel.TestWriter.
func (a *Adapter) WriteTest(ctx context.Context, test testmodel.Test) bool {
	owner := a.owner(ctx)
	if _, err := a.store.WriteTest(ctx, owner, test); err != nil {
		a.logger.WithOwner(owner).WithTest(test.Name).WithError(err).Error("failed to write test")
		return false
	}
	return true
}

// SubmitReport implements testmodel.TestReporter.
func (a *Adapter) SubmitReport(ctx context.Context, report testmodel.Report) bool {
	owner := a.owner(ctx)
	if _, err := a.store.SubmitReport(ctx, owner, report); err != nil {
		a.logger.WithOwner(owner).WithTest(report.Name).WithError(err).Error("failed to submit report")
		return false
	}
	return true
}
