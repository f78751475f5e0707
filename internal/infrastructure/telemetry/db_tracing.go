package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSlowQuery = 200 * time.Millisecond
	queryStartedKey  = "catalogsync:query_started"
)

// GormTracing adds otelgorm spans to a GORM connection and flags slow
// statements on them
type GormTracing struct {
	system    string
	variables bool
	slow      time.Duration
	log       *zap.Logger
}

// GormTracingOption configures GormTracing
type GormTracingOption func(*GormTracing)

// WithQueryVariables records bound values in the statement attribute
func WithQueryVariables(on bool) GormTracingOption {
	return func(g *GormTracing) { g.variables = on }
}

// WithSlowQuery sets the duration above which a statement is flagged slow
func WithSlowQuery(d time.Duration) GormTracingOption {
	return func(g *GormTracing) {
		if d > 0 {
			g.slow = d
		}
	}
}

// NewGormTracing traces statements against a database of the given system
// ("sqlite", "postgresql")
func NewGormTracing(system string, log *zap.Logger, opts ...GormTracingOption) *GormTracing {
	g := &GormTracing{system: system, slow: defaultSlowQuery, log: log}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Install registers the otelgorm plugin and the slow statement callbacks
func (g *GormTracing) Install(db *gorm.DB) error {
	opts := []otelgorm.Option{otelgorm.WithDBName(g.system)}
	if !g.variables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	var errs []error
	for _, h := range g.hooks(db) {
		errs = append(errs, h.at.Register("catalogsync:"+h.name, h.fn))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	g.log.Info("Database tracing enabled",
		zap.String("db_system", g.system),
		zap.Bool("query_variables", g.variables),
		zap.Duration("slow_query_threshold", g.slow),
	)
	return nil
}

// registrar is satisfied by the callback chains of gorm's processors
type registrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

type gormHook struct {
	name string
	at   registrar
	fn   func(*gorm.DB)
}

// hooks lists, per statement kind, the start and finish registrations. The
// finish callback runs before otelgorm ends its span.
func (g *GormTracing) hooks(db *gorm.DB) []gormHook {
	cb := db.Callback()
	return []gormHook{
		{"start_create", cb.Create().Before("gorm:create"), g.start},
		{"finish_create", cb.Create().After("gorm:create").Before("otel:after:create"), g.finish},
		{"start_query", cb.Query().Before("gorm:query"), g.start},
		{"finish_query", cb.Query().After("gorm:query").Before("otel:after:select"), g.finish},
		{"start_update", cb.Update().Before("gorm:update"), g.start},
		{"finish_update", cb.Update().After("gorm:update").Before("otel:after:update"), g.finish},
		{"start_delete", cb.Delete().Before("gorm:delete"), g.start},
		{"finish_delete", cb.Delete().After("gorm:delete").Before("otel:after:delete"), g.finish},
		{"start_row", cb.Row().Before("gorm:row"), g.start},
		{"finish_row", cb.Row().After("gorm:row").Before("otel:after:row"), g.finish},
		{"start_raw", cb.Raw().Before("gorm:raw"), g.start},
		{"finish_raw", cb.Raw().After("gorm:raw").Before("otel:after:raw"), g.finish},
	}
}

func (g *GormTracing) start(db *gorm.DB) {
	db.InstanceSet(queryStartedKey, time.Now())
}

func (g *GormTracing) finish(db *gorm.DB) {
	if db.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}

	if table := db.Statement.Table; table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}
	if err := db.Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		RecordError(span, err)
	}
	if v, ok := db.InstanceGet(queryStartedKey); ok {
		if elapsed := time.Since(v.(time.Time)); elapsed > g.slow {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
	}
}
