package e

import "fmt"

var (
	// Внутренние ошибки с транзакциями
	ErrTransactionNotFound = fmt.Errorf("transaction not found")

	// 401 Unauthorized
	ErrUnauthorized = fmt.Errorf("invalid or missing webhook credential")

	// 400 Bad Request — проблемы качества данных, не ретраятся
	ErrInvalidEvent         = fmt.Errorf("invalid event")
	ErrInvalidEventType     = fmt.Errorf("unknown event type")
	ErrMissingFields        = fmt.Errorf("missing required fields")
	ErrInvalidPrice         = fmt.Errorf("invalid price")
	ErrPricePrecision       = fmt.Errorf("price must have at most 2 decimal places")
	ErrInvalidLimit         = fmt.Errorf("limit must be between 1 and 50")
	ErrInvalidMinSimilarity = fmt.Errorf("min_similarity must be in [0, 1]")

	// Ошибки фоновой синхронизации
	ErrImageUnavailable   = fmt.Errorf("image reference unavailable")      // картинка недоступна, ограниченные ретраи
	ErrEmbeddingService   = fmt.Errorf("embedding service failure")        // временный сбой, ретраится с backoff
	ErrEmbeddingRejected  = fmt.Errorf("embedding service rejected input") // постоянная ошибка, не ретраится
	ErrIndexWrite         = fmt.Errorf("vector index write failed")
	ErrVectorSizeMismatch = fmt.Errorf("unexpected vector size")

	// Ошибки поиска
	ErrSearchUnavailable = fmt.Errorf("similarity search unavailable")
	ErrProductNotFound   = fmt.Errorf("product not found")

	// 500 Internal Server Error
	ErrInternalServerError = fmt.Errorf("internal server error")

	ErrIncorrectEnvVariable = fmt.Errorf("incorrect env variable")
)

// Wrap оборачивает ошибку
func Wrap(msg string, err error) error {
	return fmt.Errorf("%s: %w", msg, err)
}
