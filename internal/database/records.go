package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/maltedev/regional-product-extractor/internal/models"
)

// RecordRow is one extracted product as stored in extraction_records.
type RecordRow struct {
	ID              uuid.UUID
	RequestID       string
	Identity        string
	Title           string
	ImageURL        string
	Images          []string
	PriceCurrent    string
	PriceOriginal   *string
	Currency        string
	Category        string
	RegionCode      string
	RegionLocation  string
	RegionConfirmed bool
	SourceURL       string
	PageType        models.PageType
	ExtractedAt     time.Time
}

// Rows flattens a result into table rows.
func Rows(requestID string, result *models.ExtractionResult, at time.Time) []RecordRow {
	rows := make([]RecordRow, 0, len(result.Records))
	for _, r := range result.Records {
		row := RecordRow{
			ID:              uuid.New(),
			RequestID:       requestID,
			Identity:        r.Identity,
			Title:           r.Title,
			ImageURL:        r.ImageURL,
			Images:          append([]string{}, r.Images...),
			PriceCurrent:    r.PriceCurrent,
			Currency:        r.Currency,
			Category:        r.Category,
			RegionCode:      r.Region.Code,
			RegionLocation:  r.Region.Location,
			RegionConfirmed: r.Region.Confirmed,
			SourceURL:       r.SourceURL,
			PageType:        result.PageType,
			ExtractedAt:     at,
		}
		if orig, ok := r.PriceOriginal.Get(); ok {
			row.PriceOriginal = &orig
		}
		rows = append(rows, row)
	}
	return rows
}

type RecordRepository struct {
	db     *DB
	outbox *OutboxRepository
	stream string
}

// NewRecordRepository stores records and queues one outbox event per result
// for the given stream.
func NewRecordRepository(db *DB, stream string) *RecordRepository {
	return &RecordRepository{db: db, outbox: NewOutboxRepository(db), stream: stream}
}

// Save writes all records of a result together with their outbox event.
func (r *RecordRepository) Save(ctx context.Context, requestID string, result *models.ExtractionResult) error {
	rows := Rows(requestID, result, time.Now().UTC())
	event, err := NewRecordsEvent(requestID, result, r.stream)
	if err != nil {
		return err
	}

	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		for _, row := range rows {
			if err := insertRow(ctx, tx, row); err != nil {
				return err
			}
		}
		return r.outbox.InsertWithTx(ctx, tx, event)
	})
}

func insertRow(ctx context.Context, tx pgx.Tx, row RecordRow) error {
	query := `
		INSERT INTO extraction_records (
			id, request_id, identity, title, image_url, images,
			price_current, price_original, currency, category,
			region_code, region_location, region_confirmed,
			source_url, page_type, extracted_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`

	_, err := tx.Exec(ctx, query,
		row.ID, row.RequestID, row.Identity, row.Title, row.ImageURL, row.Images,
		row.PriceCurrent, row.PriceOriginal, row.Currency, row.Category,
		row.RegionCode, row.RegionLocation, row.RegionConfirmed,
		row.SourceURL, string(row.PageType), row.ExtractedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", row.Identity, err)
	}
	return nil
}
