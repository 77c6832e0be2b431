package testing

import (
	"context"
	"sync"

	"github.com/gaborage/go-datasource/database/types"
)

// RecordingQueryLogger keeps every logged query in memory.
type RecordingQueryLogger struct {
	mu      sync.Mutex
	queries []types.LoggedQuery
}

var _ types.QueryLogger = (*RecordingQueryLogger)(nil)

func NewRecordingQueryLogger() *RecordingQueryLogger {
	return &RecordingQueryLogger{}
}

func (r *RecordingQueryLogger) LogQuery(_ context.Context, q types.LoggedQuery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, q)
}

// Queries returns a copy of the recorded queries in order.
func (r *RecordingQueryLogger) Queries() []types.LoggedQuery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.LoggedQuery(nil), r.queries...)
}

// SQL returns the recorded SQL texts in order.
func (r *RecordingQueryLogger) SQL() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.queries))
	for i, q := range r.queries {
		out[i] = q.Query
	}
	return out
}

func (r *RecordingQueryLogger) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = nil
}
