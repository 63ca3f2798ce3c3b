package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/seqdex/internal/logger"
)

// Status is the overall verdict of a Report.
type Status string

const (
	// Healthy means every probe passed.
	Healthy Status = "ok"
	// Degraded means some probes failed.
	Degraded Status = "degraded"
	// Unhealthy means every probe failed.
	Unhealthy Status = "error"
)

// CheckResult is the outcome of one probe.
type CheckResult string

const (
	CheckOK    CheckResult = "ok"
	CheckError CheckResult = "error"
)

// Probe names as they appear in Report.Checks.
const (
	CheckDatabase = "database"
	CheckIndices  = "indices"
)

// DefaultProbeTimeout bounds each probe unless overridden.
const DefaultProbeTimeout = 2 * time.Second

// Report aggregates probe results. Indices is the index count when the
// indices probe passed.
type Report struct {
	Status  Status
	Checks  map[string]CheckResult
	Indices int
}

// Service runs the probes.
type Service struct {
	db      StorePinger
	indices IndexCounter
	timeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithProbeTimeout bounds each probe; non-positive values are ignored.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Service. indices can be nil, which skips that probe.
func New(db StorePinger, indices IndexCounter, opts ...Option) *Service {
	s := &Service{db: db, indices: indices, timeout: DefaultProbeTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Check runs the probes concurrently, each under its own timeout. Failure
// reasons go to the context logger; the report only says which failed.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		report = Report{Checks: make(map[string]CheckResult, 2)}
	)
	record := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			report.Checks[name] = CheckError
			logger.FromContext(ctx).Warn("health probe failed", zap.String("probe", name), zap.Error(err))
			return
		}
		report.Checks[name] = CheckOK
	}

	var g errgroup.Group
	g.Go(func() error {
		pctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		record(CheckDatabase, s.db.Ping(pctx))
		return nil
	})
	if s.indices != nil {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			n, err := s.indices.Count(pctx)
			if err == nil {
				mu.Lock()
				report.Indices = n
				mu.Unlock()
			}
			record(CheckIndices, err)
			return nil
		})
	}
	_ = g.Wait() // probes report through record

	report.Status = verdict(report.Checks)
	return report
}

func verdict(checks map[string]CheckResult) Status {
	failed := 0
	for _, v := range checks {
		if v == CheckError {
			failed++
		}
	}
	switch {
	case failed == 0:
		return Healthy
	case failed == len(checks):
		return Unhealthy
	default:
		return Degraded
	}
}
