package triage

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Upsert(ctx context.Context, r Record) (*Record, error)
	Get(ctx context.Context, bookingID uuid.UUID) (*Record, error)
}
