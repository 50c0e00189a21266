package db

import (
	"context"
	"database/sql"
)

const reportColumns = `id, reference, project, level, message, params, sentry_event_id, created_at`

func scanReport(row interface{ Scan(...interface{}) error }) (Report, error) {
	var i Report
	err := row.Scan(
		&i.ID,
		&i.Reference,
		&i.Project,
		&i.Level,
		&i.Message,
		&i.Params,
		&i.SentryEventID,
		&i.CreatedAt,
	)
	return i, err
}

const createReport = `INSERT INTO reports (id, reference, project, level, message, params, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + reportColumns

type CreateReportParams struct {
	ID        string
	Reference string
	Project   string
	Level     string
	Message   string
	Params    string
	CreatedAt int64
}

func (q *Queries) CreateReport(ctx context.Context, arg CreateReportParams) (Report, error) {
	row := q.db.QueryRowContext(ctx, createReport,
		arg.ID,
		arg.Reference,
		arg.Project,
		arg.Level,
		arg.Message,
		arg.Params,
		arg.CreatedAt,
	)
	return scanReport(row)
}

const getReportByID = `SELECT ` + reportColumns + ` FROM reports WHERE id = ?`

func (q *Queries) GetReportByID(ctx context.Context, id string) (Report, error) {
	return scanReport(q.db.QueryRowContext(ctx, getReportByID, id))
}

const getReportByReference = `SELECT ` + reportColumns + ` FROM reports WHERE reference = ?`

func (q *Queries) GetReportByReference(ctx context.Context, reference string) (Report, error) {
	return scanReport(q.db.QueryRowContext(ctx, getReportByReference, reference))
}

const listReportsByProject = `SELECT ` + reportColumns + ` FROM reports
WHERE project = ?
ORDER BY created_at DESC, id
LIMIT ?`

type ListReportsByProjectParams struct {
	Project string
	Limit   int64
}

func (q *Queries) ListReportsByProject(ctx context.Context, arg ListReportsByProjectParams) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, listReportsByProject, arg.Project, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Report
	for rows.Next() {
		i, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const referenceExists = `SELECT EXISTS(SELECT 1 FROM reports WHERE reference = ?)`

func (q *Queries) ReferenceExists(ctx context.Context, reference string) (int64, error) {
	var exists int64
	err := q.db.QueryRowContext(ctx, referenceExists, reference).Scan(&exists)
	return exists, err
}

const setReportSentryEventID = `UPDATE reports SET sentry_event_id = ? WHERE id = ?`

type SetReportSentryEventIDParams struct {
	SentryEventID sql.NullString
	ID            string
}

func (q *Queries) SetReportSentryEventID(ctx context.Context, arg SetReportSentryEventIDParams) error {
	_, err := q.db.ExecContext(ctx, setReportSentryEventID, arg.SentryEventID, arg.ID)
	return err
}

const deleteReport = `DELETE FROM reports WHERE id = ?`

func (q *Queries) DeleteReport(ctx context.Context, id string) (sql.Result, error) {
	return q.db.ExecContext(ctx, deleteReport, id)
}
