package obs

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

// CycleIDKey tags log lines with the poll cycle (or HTTP request) they belong to.
const CycleIDKey ctxKey = "cycle_id"

// WithCycleID returns a context carrying a fresh cycle id.
func WithCycleID(ctx context.Context) context.Context {
	return context.WithValue(ctx, CycleIDKey, uuid.NewString())
}

func CycleID(ctx context.Context) string {
	id, _ := ctx.Value(CycleIDKey).(string)
	return id
}

func Time(ctx context.Context, name string) func(errp *error) {
	start := time.Now()

	cycleID := CycleID(ctx)

	return func(errp *error) {
		dur := time.Since(start)

		if errp != nil && *errp != nil {
			log.Printf("cycle_id=%s op=%s dur=%dms err=%v", cycleID, name, dur.Milliseconds(), *errp)
			return
		}
		log.Printf("cycle_id=%s op=%s dur=%dms", cycleID, name, dur.Milliseconds())
	}
}
