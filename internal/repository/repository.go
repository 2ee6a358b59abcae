package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/BerylCAtieno/travel-extract/internal/category"
	"github.com/BerylCAtieno/travel-extract/internal/models"
)

var ErrNotFound = errors.New("booking not found")

// BookingRepository stores one row per extraction in the table of its
// category.
type BookingRepository interface {
	Insert(ctx context.Context, rec *models.BookingRecord) error
	GetByID(ctx context.Context, c category.Category, id string) (*models.BookingRecord, error)
	List(ctx context.Context, c category.Category, limit int) ([]*models.BookingRecord, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) BookingRepository {
	return &repository{db: db}
}

// bookingRow is the column layout shared by every category table.
type bookingRow struct {
	ID                string         `db:"id"`
	JobID             string         `db:"job_id"`
	Source            string         `db:"source"`
	SourceDescription string         `db:"source_description"`
	Sender            sql.NullString `db:"sender"`
	DocumentType      string         `db:"document_type"`
	Fields            string         `db:"fields"`
	RawReply          string         `db:"raw_reply"`
	CreatedAt         time.Time      `db:"created_at"`
}

// table resolves the destination table. Names only ever come from the
// category table.
func table(c category.Category) (string, error) {
	def, ok := category.Lookup(c)
	if !ok {
		return "", fmt.Errorf("%w: %q", category.ErrUnknownCategory, c)
	}
	return def.Table, nil
}

func (r *repository) Insert(ctx context.Context, rec *models.BookingRecord) error {
	tbl, err := table(category.Category(rec.Category))
	if err != nil {
		return err
	}

	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	row := bookingRow{
		ID:                rec.ID,
		JobID:             rec.JobID,
		Source:            rec.Source,
		SourceDescription: rec.SourceDescription,
		DocumentType:      rec.DocumentType,
		Fields:            string(fields),
		RawReply:          rec.RawReply,
		CreatedAt:         rec.CreatedAt,
	}
	if rec.Sender != nil {
		row.Sender = sql.NullString{String: *rec.Sender, Valid: true}
	}

	query := `
		INSERT INTO ` + tbl + ` (id, job_id, source, source_description, sender, document_type, fields, raw_reply, created_at)
		VALUES (:id, :job_id, :source, :source_description, :sender, :document_type, :fields, :raw_reply, :created_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", tbl, err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, c category.Category, id string) (*models.BookingRecord, error) {
	tbl, err := table(c)
	if err != nil {
		return nil, err
	}

	var row bookingRow
	query := `
		SELECT id, job_id, source, source_description, sender, document_type, fields, raw_reply, created_at
		FROM ` + tbl + `
		WHERE id = ?
	`
	err = r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", tbl, err)
	}
	return row.record(c)
}

// List returns the newest records first. A non-positive limit means 50.
func (r *repository) List(ctx context.Context, c category.Category, limit int) ([]*models.BookingRecord, error) {
	tbl, err := table(c)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	var rows []bookingRow
	query := `
		SELECT id, job_id, source, source_description, sender, document_type, fields, raw_reply, created_at
		FROM ` + tbl + `
		ORDER BY created_at DESC, id
		LIMIT ?
	`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", tbl, err)
	}

	out := make([]*models.BookingRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record(c)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (row bookingRow) record(c category.Category) (*models.BookingRecord, error) {
	rec := &models.BookingRecord{
		ID:                row.ID,
		JobID:             row.JobID,
		Category:          string(c),
		Source:            row.Source,
		SourceDescription: row.SourceDescription,
		DocumentType:      row.DocumentType,
		RawReply:          row.RawReply,
		CreatedAt:         row.CreatedAt,
	}
	if row.Sender.Valid {
		s := row.Sender.String
		rec.Sender = &s
	}
	if row.Fields != "" {
		if err := json.Unmarshal([]byte(row.Fields), &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields of %s: %w", row.ID, err)
		}
	}
	return rec, nil
}
