package audit

import (
	"sync"

	"go.uber.org/zap"
)

const (
	progressBeginMessageConstant  = "task started"
	progressWorkedMessageConstant = "task progressed"
	progressDoneMessageConstant   = "task finished"
	logFieldTaskConstant          = "task"
	logFieldCompletedConstant     = "completed"
	logFieldTotalConstant         = "total"
)

// LoggingProgressReporter emits progress events as debug log entries.
type LoggingProgressReporter struct {
	logger    *zap.Logger
	mutex     sync.Mutex
	taskName  string
	totalWork int
	completed int
}

// NewLoggingProgressReporter constructs a reporter that logs through the provided logger.
func NewLoggingProgressReporter(logger *zap.Logger) *LoggingProgressReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingProgressReporter{logger: logger}
}

// BeginTask records the start of a task with a known amount of work.
func (reporter *LoggingProgressReporter) BeginTask(name string, totalWork int) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	reporter.taskName = name
	reporter.totalWork = totalWork
	reporter.completed = 0
	reporter.logger.Debug(progressBeginMessageConstant, zap.String(logFieldTaskConstant, name), zap.Int(logFieldTotalConstant, totalWork))
}

// Worked records completed units of work.
func (reporter *LoggingProgressReporter) Worked(units int) {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	reporter.completed += units
	reporter.logger.Debug(
		progressWorkedMessageConstant,
		zap.String(logFieldTaskConstant, reporter.taskName),
		zap.Int(logFieldCompletedConstant, reporter.completed),
		zap.Int(logFieldTotalConstant, reporter.totalWork),
	)
}

// Done records the end of the current task.
func (reporter *LoggingProgressReporter) Done() {
	reporter.mutex.Lock()
	defer reporter.mutex.Unlock()

	reporter.logger.Debug(progressDoneMessageConstant, zap.String(logFieldTaskConstant, reporter.taskName), zap.Int(logFieldCompletedConstant, reporter.completed))
}
