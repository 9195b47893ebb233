package related

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"allergen-guard/internal/infrastructure/config"
	"allergen-guard/internal/pkg/common"

	"go.uber.org/zap"
)

// Job 背景同步工作
type Job struct {
	UserID   string
	Allergen string
}

// Status 隊列狀態
type Status struct {
	QueueLength    int `json:"queue_length"`
	ProcessedCount int `json:"processed_count"`
	FailedCount    int `json:"failed_count"`
	MaxQueueSize   int `json:"max_queue_size"`
	Workers        int `json:"workers"`
}

// Queue 相關食品同步的背景工作隊列
type Queue struct {
	config    *config.QueueConfig
	syncer    *Syncer
	timeout   time.Duration
	queue     chan Job
	wg        sync.WaitGroup
	processed int64
	failed    int64
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

// NewQueue 創建新的隊列；timeout 為單一同步工作的上限
func NewQueue(cfg *config.QueueConfig, syncer *Syncer, timeout time.Duration) *Queue {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Queue{
		config:  cfg,
		syncer:  syncer,
		timeout: timeout,
		queue:   make(chan Job, cfg.MaxSize),
	}
}

// Start 啟動 worker
func (q *Queue) Start() {
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	common.LogInfo("同步隊列已啟動",
		zap.Int("workers", q.config.Workers),
		zap.Int("max_queue_size", q.config.MaxSize),
	)
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()
	for job := range q.queue {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		_, err := q.syncer.Sync(ctx, job.UserID, job.Allergen)
		cancel()
		if err != nil {
			atomic.AddInt64(&q.failed, 1)
			common.LogError("背景同步失敗",
				zap.Int("worker", id),
				zap.String("user_id", job.UserID),
				zap.String("allergen", job.Allergen),
				zap.Error(err),
			)
			continue
		}
		atomic.AddInt64(&q.processed, 1)
	}
}

// Enqueue 將工作加入隊列，隊列滿時立即回傳錯誤
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return common.ErrQueueClosed
	}

	select {
	case q.queue <- job:
		common.LogDebug("Sync job enqueued",
			zap.String("user_id", job.UserID),
			zap.String("allergen", job.Allergen),
			zap.Int("queue_length", len(q.queue)),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return common.ErrQueueFull
	}
}

// GetQueueStatus 獲取隊列狀態
func (q *Queue) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    len(q.queue),
		ProcessedCount: int(atomic.LoadInt64(&q.processed)),
		FailedCount:    int(atomic.LoadInt64(&q.failed)),
		MaxQueueSize:   q.config.MaxSize,
		Workers:        q.config.Workers,
	}
}

// Close 停止接受新工作並等待 worker 處理完剩餘工作
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.queue)
		q.mu.Unlock()
		q.wg.Wait()
	})
}
