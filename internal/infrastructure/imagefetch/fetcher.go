package imagefetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/e"
)

// Fetcher скачивает изображение по внешней ссылке.
// Любой сбой скачивания классифицируется как ErrImageUnavailable:
// upstream мог ещё не дораскатить картинку, поэтому планировщик ретраит
// такие ошибки ограниченное число раз.
type Fetcher struct {
	httpClient *http.Client
	maxBytes   int64
}

func NewFetcher(timeout time.Duration) *Fetcher {
	const maxImageBytes = 15 << 20

	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxImageBytes,
	}
}

// Fetch возвращает байты изображения и его MIME-тип.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*usecase.FetchImageRes, error) {
	const op = "Fetcher.Fetch"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrImageUnavailable))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrImageUnavailable))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, e.Wrap(op, e.Wrap(fmt.Sprintf("status %d for %s", resp.StatusCode, ref), e.ErrImageUnavailable))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrImageUnavailable))
	}
	if int64(len(data)) > f.maxBytes {
		return nil, e.Wrap(op, e.Wrap(fmt.Sprintf("image exceeds %d bytes", f.maxBytes), e.ErrImageUnavailable))
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data[:min(len(data), 512)])
	}

	return &usecase.FetchImageRes{Data: data, MimeType: mimeType}, nil
}
