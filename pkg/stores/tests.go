package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/uirecorder/teststore/pkg/telemetry"
	"github.com/uirecorder/teststore/pkg/testmodel"
)

type testRow struct {
	Name    string `db:"name"`
	Data    string `db:"data"`
	Version int    `db:"version"`
}

func (r testRow) decode() (testmodel.Test, error) {
	var test testmodel.Test
	if err := json.Unmarshal([]byte(r.Data), &test); err != nil {
		return testmodel.Test{}, fmt.Errorf("failed to decode test %q: %w: %w", r.Name, ErrMalformedPayload, err)
	}
	// The columns are authoritative over the payload copy.
	test.Name = r.Name
	test.Version = r.Version
	return test.StripImages(), nil
}

// ReadTests returns every stored test of owner as pending work. An owner
// that has never written anything yields an empty list and no error.
func (s *SQLiteStore) ReadTests(ctx context.Context, owner string) (pending []testmodel.PendingTest, err error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	op := s.tel.StartOperation(ctx, "stores.read_tests", telemetry.AttrOwner.String(owner))
	defer func() { op.End(err) }()

	var ownerID int64
	err = s.db.GetContext(op.Ctx, &ownerID, s.queries.selectOwnerID, owner)
	if errors.Is(err, sql.ErrNoRows) {
		return []testmodel.PendingTest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owner %q: %w", owner, err)
	}

	var rows []testRow
	if err := s.db.SelectContext(op.Ctx, &rows, s.queries.selectTests, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}

	pending = make([]testmodel.PendingTest, 0, len(rows))
	for _, row := range rows {
		test, err := row.decode()
		if err != nil {
			return nil, err
		}
		pending = append(pending, testmodel.PendingTest{Owner: owner, Test: test})
	}

	op.Span.SetAttributes(telemetry.AttrRowCount.Int(len(pending)))
	return pending, nil
}

// GetTest returns one stored test, or ErrNotFound.
func (s *SQLiteStore) GetTest(ctx context.Context, owner, name string) (test *testmodel.Test, err error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	op := s.tel.StartOperation(ctx, "stores.get_test",
		telemetry.AttrOwner.String(owner),
		telemetry.AttrTestName.String(name),
	)
	defer func() { op.End(err) }()

	var row testRow
	err = s.db.GetContext(op.Ctx, &row, s.queries.selectTest, owner, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("test %s/%s: %w", owner, name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}

	decoded, err := row.decode()
	if err != nil {
		return nil, err
	}
	return &decoded, nil
}

// WriteTest stores test under owner, creating the owner on first use, and
// returns the version now stored. Step images are dropped before encoding.
// A test absent from the store is stored at test.Version+1; an existing one
// at max(test.Version+1, stored+1).
func (s *SQLiteStore) WriteTest(ctx context.Context, owner string, test testmodel.Test) (version int, err error) {
	if s.db == nil {
		return 0, ErrNotInitialized
	}
	if err := test.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidTest, err)
	}

	op := s.tel.StartOperation(ctx, "stores.write_test",
		telemetry.AttrOwner.String(owner),
		telemetry.AttrTestName.String(test.Name),
	)
	defer func() { op.End(err) }()

	stored := test.StripImages()
	stored.Version = test.Version + 1

	data, err := json.Marshal(stored)
	if err != nil {
		return 0, fmt.Errorf("failed to encode test: %w", err)
	}

	err = s.inTx(op.Ctx, func(tx *sqlx.Tx) error {
		ownerID, err := s.ensureOwner(op.Ctx, tx, owner)
		if err != nil {
			return err
		}

		row := tx.QueryRowxContext(op.Ctx, s.queries.upsertTest,
			stored.Name,
			string(data),
			ownerID,
			stored.Version,
			time.Now().UnixMilli(),
		)
		if err := row.Scan(&version); err != nil {
			return fmt.Errorf("failed to upsert test: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	op.Span.SetAttributes(telemetry.AttrVersion.Int(version))
	op.Logger.WithOwner(owner).WithTest(test.Name).Debugf("stored at version %d", version)
	s.tel.Metrics.RecordTestWritten(version)
	_ = s.tel.Events.PublishTestWritten(owner, test.Name, version)
	return version, nil
}

// ensureOwner returns the id of owner, inserting the row the first time.
func (s *SQLiteStore) ensureOwner(ctx context.Context, tx *sqlx.Tx, owner string) (int64, error) {
	if owner == "" {
		return 0, fmt.Errorf("owner name is required")
	}

	if _, err := tx.ExecContext(ctx, s.queries.insertOwner, owner, time.Now().UnixMilli()); err != nil {
		return 0, fmt.Errorf("failed to create owner %q: %w", owner, err)
	}

	var id int64
	if err := tx.GetContext(ctx, &id, s.queries.selectOwnerID, owner); err != nil {
		return 0, fmt.Errorf("failed to resolve owner %q: %w", owner, err)
	}
	return id, nil
}

// ListOwners returns every owner name in ascending order.
func (s *SQLiteStore) ListOwners(ctx context.Context) (owners []string, err error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}

	op := s.tel.StartOperation(ctx, "stores.list_owners")
	defer func() { op.End(err) }()

	owners = []string{}
	if err := s.db.SelectContext(op.Ctx, &owners, s.queries.listOwners); err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	return owners, nil
}
