package pipeline

import (
	"context"

	"github.com/backyonatan-alt/petitionwatch/internal/model"
)

// Source is the remote side of a cycle. fetcher.Fetcher implements it.
type Source interface {
	Members(ctx context.Context) ([]model.Member, error)
	// ListingPage fetches a listing page; an empty pageURL means the first.
	ListingPage(ctx context.Context, pageURL string) (model.ListingPage, error)
	Petition(ctx context.Context, id int64) (model.PetitionDetail, error)
}
