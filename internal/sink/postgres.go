package sink

import (
	"context"

	"github.com/maltedev/regional-product-extractor/internal/models"
)

// RecordStore persists a result; database.RecordRepository implements it.
type RecordStore interface {
	Save(ctx context.Context, requestID string, result *models.ExtractionResult) error
}

type Postgres struct {
	store RecordStore
}

func NewPostgres(store RecordStore) *Postgres {
	return &Postgres{store: store}
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Deliver(ctx context.Context, d Delivery) error {
	if len(d.Result.Records) == 0 {
		return nil
	}
	return p.store.Save(ctx, d.RequestID, d.Result)
}
