package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker counts files through a batch run and logs at intervals.
// It is safe for concurrent use by pool workers.
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int64
	done        int64
	failed      int64
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	now         func() time.Time
	mutex       sync.Mutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation   string
	Total       int64
	LogInterval time.Duration
	Logger      Logger
	Clock       func() time.Time
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}
	if config.LogInterval == 0 {
		config.LogInterval = 5 * time.Second
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	start := config.Clock()
	tracker := &ProgressTracker{
		logger:      config.Logger.WithComponent("progress"),
		operation:   config.Operation,
		total:       config.Total,
		startTime:   start,
		lastLogTime: start,
		logInterval: config.LogInterval,
		now:         config.Clock,
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"total":     config.Total,
	}).Info("Starting operation")

	return tracker
}

// Done records one finished file; failed marks a file that produced no document.
func (p *ProgressTracker) Done(failed bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.done++
	if failed {
		p.failed++
	}

	now := p.now()
	if now.Sub(p.lastLogTime) >= p.logInterval {
		p.logger.WithFields(p.fields(now)).Info("Progress update")
		p.lastLogTime = now
	}
}

// Complete logs final statistics
func (p *ProgressTracker) Complete() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.logger.WithFields(p.fields(p.now())).Info("Operation completed")
}

// Stats returns a snapshot of the counters.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	return ProgressStats{
		Operation: p.operation,
		Total:     p.total,
		Done:      p.done,
		Failed:    p.failed,
		Duration:  p.now().Sub(p.startTime),
	}
}

func (p *ProgressTracker) fields(now time.Time) Fields {
	elapsed := now.Sub(p.startTime)
	fields := Fields{
		"operation": p.operation,
		"processed": p.done,
		"failed":    p.failed,
		"elapsed":   elapsed.String(),
	}
	if p.total > 0 {
		fields["total"] = p.total
		fields["percentage"] = fmt.Sprintf("%.1f%%", float64(p.done)/float64(p.total)*100)
	}
	return fields
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation string        `json:"operation"`
	Total     int64         `json:"total"`
	Done      int64         `json:"done"`
	Failed    int64         `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	if ps.Total > 0 {
		return fmt.Sprintf("%s: %d/%d files (%d failed) in %v",
			ps.Operation, ps.Done, ps.Total, ps.Failed, ps.Duration)
	}
	return fmt.Sprintf("%s: %d files (%d failed) in %v",
		ps.Operation, ps.Done, ps.Failed, ps.Duration)
}

// TimedOperation runs one pipeline stage and logs its duration at debug
// level. Failures are returned for the caller to report.
func TimedOperation(operation string, logger Logger, fn func() error) error {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	start := time.Now()
	err := fn()

	l := logger.WithFields(Fields{"operation": operation, "duration": time.Since(start).String()})
	if err != nil {
		l.WithError(err).Debug("Stage failed")
	} else {
		l.Debug("Stage completed")
	}
	return err
}
