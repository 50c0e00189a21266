package db

import "database/sql"

type Report struct {
	ID            string
	Reference     string
	Project       string
	Level         string
	Message       string
	Params        string
	SentryEventID sql.NullString
	CreatedAt     int64
}
