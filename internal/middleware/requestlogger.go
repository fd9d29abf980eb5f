package middleware

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aman-churiwal/crm-relay/internal/models"
	"github.com/gin-gonic/gin"
)

const (
	logBatchSize     = 100
	logFlushInterval = 5 * time.Second
)

// LogWriter persists a batch of request logs.
type LogWriter interface {
	CreateBatch(ctx context.Context, logs []models.RequestLog) error
}

// RequestLogger records every request asynchronously. Entries are dropped
// rather than blocking a request when the buffer is full.
type RequestLogger struct {
	writer        LogWriter
	entries       chan models.RequestLog
	flushInterval time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewRequestLogger(writer LogWriter, bufferSize int) *RequestLogger {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	return &RequestLogger{
		writer:        writer,
		entries:       make(chan models.RequestLog, bufferSize),
		flushInterval: logFlushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start runs the batch insert worker.
func (l *RequestLogger) Start() {
	go func() {
		defer close(l.done)

		batch := make([]models.RequestLog, 0, logBatchSize)
		ticker := time.NewTicker(l.flushInterval)
		defer ticker.Stop()

		for {
			select {
			case entry := <-l.entries:
				batch = append(batch, entry)

				if len(batch) >= logBatchSize {
					batch = l.insertBatch(batch)
				}
			case <-ticker.C:
				if len(batch) > 0 {
					batch = l.insertBatch(batch)
				}
			case <-l.stop:
				for {
					select {
					case entry := <-l.entries:
						batch = append(batch, entry)
					default:
						l.insertBatch(batch)
						return
					}
				}
			}
		}
	}()
}

// Stop flushes queued entries and waits for the worker to exit.
func (l *RequestLogger) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	<-l.done
}

func (l *RequestLogger) insertBatch(batch []models.RequestLog) []models.RequestLog {
	if len(batch) == 0 {
		return batch
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := l.writer.CreateBatch(ctx, batch); err != nil {
		log.Printf("Failed to insert %d request logs: %v", len(batch), err)
	}

	return make([]models.RequestLog, 0, logBatchSize)
}

func (l *RequestLogger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)

		entry := models.RequestLog{
			Timestamp:      start.UTC(),
			RequestID:      c.GetString(RequestIDKey),
			Method:         c.Request.Method,
			Path:           c.Request.URL.Path,
			StatusCode:     c.Writer.Status(),
			ResponseTimeMs: int(duration.Milliseconds()),
			IPAddress:      clientIP(c),
			UserAgent:      c.Request.UserAgent(),
			RejectReason:   c.GetString(RejectReasonKey),
		}

		select {
		case l.entries <- entry:
		default:
			log.Printf("[%s] Request log buffer full, skipping entry", entry.RequestID)
		}
	}
}
