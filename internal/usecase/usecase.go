package usecase

import "context"

type SyncUC interface {
	ApplyEvent(ctx context.Context, req *ApplyEventReq) (*ApplyEventRes, error)
}

type SearchUC interface {
	FindSimilar(ctx context.Context, req *FindSimilarReq) (*FindSimilarRes, error)
}
