package tracking

import (
	"context"
	"time"

	"github.com/gaborage/go-datasource/database/types"
	"github.com/gaborage/go-datasource/logger"
)

// QueryLogger is the default types.QueryLogger. Each logged query becomes a structured
// log event, a client span and a set of metric points.
type QueryLogger struct {
	log      logger.Logger
	settings Settings
}

// NewQueryLogger creates a QueryLogger writing to log with the given settings.
func NewQueryLogger(log logger.Logger, settings Settings) *QueryLogger {
	return &QueryLogger{log: log, settings: settings}
}

// LogQuery implements types.QueryLogger.
func (l *QueryLogger) LogQuery(ctx context.Context, q types.LoggedQuery) {
	if l == nil {
		return
	}
	tc := &Context{
		ConfigName: q.ConfigName,
		Vendor:     q.Vendor,
		Logger:     l.log,
		Settings:   l.settings,
	}
	TrackDBOperation(ctx, tc, q.Query, q.Params, time.Now().Add(-q.Took), q.NumRows, q.Err)
}
