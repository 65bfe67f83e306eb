package testmodel

import "context"

// DefaultOwner is the owner used when none is attached to the context.
const DefaultOwner = "default"

// TestReader produces the tests queued for execution.
type TestReader interface {
	ReadTests(ctx context.Context) []PendingTest
}

// TestWriter persists a recorded test and reports whether it succeeded.
type TestWriter interface {
	WriteTest(ctx context.Context, test Test) bool
}

// TestReporter persists a completed report and reports whether it succeeded.
type TestReporter interface {
	SubmitReport(ctx context.Context, report Report) bool
}

type ownerContextKey struct{}

// WithOwner attaches an owner name to the context.
func WithOwner(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, owner)
}

// OwnerFromContext returns the owner attached to ctx, or fallback when none
// is set. An empty fallback resolves to DefaultOwner.
func OwnerFromContext(ctx context.Context, fallback string) string {
	if owner, ok := ctx.Value(ownerContextKey{}).(string); ok && owner != "" {
		return owner
	}
	if fallback == "" {
		return DefaultOwner
	}
	return fallback
}
