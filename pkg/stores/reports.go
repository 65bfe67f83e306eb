package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/uirecorder/teststore/pkg/telemetry"
	"github.com/uirecorder/teststore/pkg/testmodel"
)

type reportRow struct {
	ID                int64          `db:"id"`
	RunID             string         `db:"run_id"`
	Owner             string         `db:"owner"`
	Name              string         `db:"name"`
	Version           int            `db:"version"`
	DeviceInfo        string         `db:"device_info"`
	StartTime         int64          `db:"start_time"`
	EndTime           int64          `db:"end_time"`
	InvertedStartTime int64          `db:"inverted_start_time"`
	PassedSteps       int            `db:"passed_steps"`
	ErrorSteps        int            `db:"error_steps"`
	Steps             string         `db:"steps"`
	Images            string         `db:"images"`
	Logs              string         `db:"logs"`
	RuntimeException  sql.NullString `db:"runtime_exception"`
	Success           bool           `db:"success"`
}

func (r reportRow) decode() (*testmodel.Report, error) {
	report := &testmodel.Report{
		ID:               r.ID,
		RunID:            r.RunID,
		Owner:            r.Owner,
		Name:             r.Name,
		Version:          r.Version,
		StartTime:        time.UnixMilli(r.StartTime),
		EndTime:          time.UnixMilli(r.EndTime),
		RuntimeException: r.RuntimeException.String,
		Success:          r.Success,
	}

	columns := []struct {
		name string
		raw  string
		dst  any
	}{
		{"device_info", r.DeviceInfo, &report.DeviceInfo},
		{"steps", r.Steps, &report.Steps},
		{"images", r.Images, &report.Images},
		{"logs", r.Logs, &report.Logs},
	}
	for _, c := range columns {
		if err := json.Unmarshal([]byte(c.raw), c.dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s of report %d: %w: %w", c.name, r.ID, ErrMalformedPayload, err)
		}
	}
	return report, nil
}

// encodeJSON marshals v, writing empty collections as [] rather than null.
func encodeJSON[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SubmitReport appends one report row for owner and returns its id.
// Reports are never updated. An empty RunID is replaced with a new uuid.
func (s *SQLiteStore) SubmitReport(ctx context.Context, owner string, report testmodel.Report) (id int64, err error) {
	if s.db == nil {
		return 0, ErrNotInitialized
	}
	if err := report.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidTest, err)
	}
	if report.RunID == "" {
		report.RunID = uuid.New().String()
	}

	op := s.tel.StartOperation(ctx, "stores.submit_report",
		telemetry.AttrOwner.String(owner),
		telemetry.AttrTestName.String(report.Name),
		telemetry.AttrRunID.String(report.RunID),
	)
	defer func() { op.End(err) }()

	deviceInfo, err := json.Marshal(report.DeviceInfo)
	if err != nil {
		return 0, fmt.Errorf("failed to encode device info: %w", err)
	}
	steps, err := encodeJSON(report.Steps)
	if err != nil {
		return 0, fmt.Errorf("failed to encode steps: %w", err)
	}
	images, err := encodeJSON(report.Images)
	if err != nil {
		return 0, fmt.Errorf("failed to encode images: %w", err)
	}
	logs, err := encodeJSON(report.Logs)
	if err != nil {
		return 0, fmt.Errorf("failed to encode logs: %w", err)
	}

	startTime := report.StartTime.UnixMilli()
	passed, failed := report.PassedSteps(), report.ErrorSteps()

	var runtimeException sql.NullString
	if report.RuntimeException != "" {
		runtimeException = sql.NullString{String: report.RuntimeException, Valid: true}
	}

	result, err := s.db.ExecContext(op.Ctx, s.queries.insertReport,
		report.RunID,
		owner,
		report.Name,
		report.Version,
		string(deviceInfo),
		startTime,
		report.EndTime.UnixMilli(),
		-startTime,
		passed,
		failed,
		steps,
		images,
		logs,
		runtimeException,
		report.Success,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert report: %w", err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get report ID: %w", err)
	}

	s.tel.Metrics.RecordReportSubmitted(report.Success, passed, failed)
	_ = s.tel.Events.PublishReportSubmitted(owner, report.Name, report.RunID, report.Success)
	return id, nil
}

// ListReports returns reports of owner, most recent start time first.
func (s *SQLiteStore) ListReports(ctx context.Context, owner string, limit, offset int) (reports []*testmodel.Report, err error) {
	if s.db == nil {
		return nil, ErrNotInitialized
	}
	if limit <= 0 {
		limit = -1 // no limit
	}

	op := s.tel.StartOperation(ctx, "stores.list_reports", telemetry.AttrOwner.String(owner))
	defer func() { op.End(err) }()

	var rows []reportRow
	if err := s.db.SelectContext(op.Ctx, &rows, s.queries.listReports, owner, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports = make([]*testmodel.Report, 0, len(rows))
	for _, row := range rows {
		report, err := row.decode()
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}
