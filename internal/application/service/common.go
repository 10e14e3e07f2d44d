package service

import (
	"fmt"
	"time"

	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

func loggerOrNop(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

// amountEpsilon absorbs float rounding when comparing money amounts
const amountEpsilon = 0.005

func actorID(a *entity.Actor) int64 {
	if a == nil {
		return 0
	}
	return a.ID
}

func preconditionFailed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domainwf.ErrPreconditionFailed, fmt.Sprintf(format, args...))
}

func unauthorized(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domainwf.ErrUnauthorized, fmt.Sprintf(format, args...))
}

// invalid wraps an input validation error as a failed precondition
func invalid(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", domainwf.ErrPreconditionFailed, err)
}

// documentNumber renders PREFIX-yyyyMMdd-NNNN
func documentNumber(prefix string, day time.Time, seq int) string {
	return fmt.Sprintf("%s-%04d", dayPrefix(prefix, day), seq)
}

func dayPrefix(prefix string, day time.Time) string {
	return fmt.Sprintf("%s-%s", prefix, day.Format("20060102"))
}

func subjectKey(t entity.SubjectType, id int64) string {
	return entity.SubjectRef{Type: t, ID: id}.String()
}
