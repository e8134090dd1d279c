package usecase

import (
	"context"
	"errors"

	"cryptocagua/model"
	"cryptocagua/pkg/sheets"
)

var (
	ErrAdminRequired   = errors.New("unauthorized: admin session required")
	ErrOfferNotFound   = errors.New("offer not found")
	ErrNotOwner        = errors.New("unauthorized: contact does not match the offer")
	ErrAINotConfigured = errors.New("AI is not configured: missing API key")
	ErrMissingInput    = errors.New("title and category are required")
)

// RemoteStore is the spreadsheet-backed source of truth.
type RemoteStore interface {
	Read(ctx context.Context) ([]model.Offer, error)
	Save(ctx context.Context, o model.Offer) (sheets.Ack, error)
	UpdateStatus(ctx context.Context, id string, status model.OfferStatus) (sheets.Ack, error)
	Delete(ctx context.Context, id string) (sheets.Ack, error)
	Ping(ctx context.Context) sheets.Diagnosis
}

// Notifier tells the admin about new submissions.
type Notifier interface {
	OfferSubmitted(ctx context.Context, o model.Offer) error
}

// Advisor is the LLM collaborator.
type Advisor interface {
	GenerateDescription(ctx context.Context, title, category string) (string, error)
	AnalyzeOffer(ctx context.Context, summary string) (string, error)
}
