package usecase

import "context"

type EmbedderInfra interface {
	Vectorize(ctx context.Context, req *VectorizeReq) (*VectorizeRes, error)
}

type ImageFetcherInfra interface {
	Fetch(ctx context.Context, ref string) (*FetchImageRes, error)
}

type ImageArchiveInfra interface {
	Archive(ctx context.Context, req *ArchiveImageReq) (string, error)
}

// SyncReporter — канал наблюдаемости для исходов фоновой синхронизации.
// Терминальные ошибки задач обязаны попадать сюда, а не теряться в логах.
type SyncReporter interface {
	Report(ctx context.Context, report *SyncReport) error
}
