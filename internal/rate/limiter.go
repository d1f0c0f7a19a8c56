// rate ограничивает частоту попыток входа по ключу (обычно client IP):
// фиксированное окно и порог. Две реализации — в памяти процесса и в Redis
// (для нескольких реплик сервиса).
package rate

import (
	"context"
	"time"
)

// Limiter решает, допустима ли очередная попытка по ключу.
// retryAfter > 0 только при отказе и сообщает, когда окно откроется.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}
