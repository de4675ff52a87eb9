package domain

import "time"

// SyncTaskReason — причина постановки задачи на (пере)векторизацию.
type SyncTaskReason string

const (
	ReasonCreated SyncTaskReason = "created"
	ReasonUpdated SyncTaskReason = "updated"
)

// SyncTaskStatus — статус задачи в очереди.
type SyncTaskStatus string

const (
	TaskPending    SyncTaskStatus = "pending"
	TaskProcessing SyncTaskStatus = "processing"
	TaskDone       SyncTaskStatus = "done"
	TaskFailed     SyncTaskStatus = "failed"
)

// SyncTask — единица фоновой работы «этому товару нужна (пере)векторизация».
// Задачи по одному товару коалесцируются: новая постановка вытесняет
// ещё не выполненную старую.
type SyncTask struct {
	ID           int64
	ProductID    int64
	Reason       SyncTaskReason
	Status       SyncTaskStatus
	AttemptCount int
	NextRetryAt  time.Time
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

func NewSyncTask(productID int64, reason SyncTaskReason) *SyncTask {
	return &SyncTask{
		ProductID: productID,
		Reason:    reason,
		Status:    TaskPending,
	}
}
