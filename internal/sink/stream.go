package sink

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/maltedev/regional-product-extractor/internal/database"
)

// Stream publishes results straight to a Redis stream. It is used when no
// database is configured; otherwise the outbox relay publishes.
type Stream struct {
	client database.RedisClient
	stream string
	source string
}

func NewStream(client database.RedisClient, stream string) *Stream {
	if stream == "" {
		stream = database.DefaultStream
	}
	return &Stream{client: client, stream: stream, source: "regional-product-extractor"}
}

func (s *Stream) Name() string { return "redis" }

func (s *Stream) Deliver(ctx context.Context, d Delivery) error {
	event, err := database.NewRecordsEvent(d.RequestID, d.Result, s.stream)
	if err != nil {
		return err
	}
	event.ID = uuid.New()
	event.CreatedAt = time.Now()

	args, err := database.StreamArgs(event, s.source)
	if err != nil {
		return err
	}
	return s.client.XAdd(ctx, args).Err()
}
