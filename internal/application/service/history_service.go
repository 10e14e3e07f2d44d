package service

import (
	"context"
	"fmt"
	"io"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
	domainwf "github.com/garyjia/doc-lifecycle/internal/domain/workflow"
)

// HistoryService reads the transition log
type HistoryService interface {
	// List returns a subject's transitions, newest first
	List(ctx context.Context, subject entity.SubjectRef) ([]*entity.TransitionRecord, error)

	// Export writes a subject's transitions as a document
	Export(ctx context.Context, subject entity.SubjectRef, w io.Writer) error
}

type historyServiceImpl struct {
	historyRepo port.HistoryRepository
	exporter    port.HistoryExporter
	logger      Logger
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(historyRepo port.HistoryRepository, exporter port.HistoryExporter, logger Logger) HistoryService {
	return &historyServiceImpl{
		historyRepo: historyRepo,
		exporter:    exporter,
		logger:      loggerOrNop(logger),
	}
}

func (s *historyServiceImpl) List(ctx context.Context, subject entity.SubjectRef) ([]*entity.TransitionRecord, error) {
	if !subject.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown subject type %q", domainwf.ErrInvalidState, subject.Type)
	}
	return s.historyRepo.ListBySubject(ctx, subject)
}

func (s *historyServiceImpl) Export(ctx context.Context, subject entity.SubjectRef, w io.Writer) error {
	if s.exporter == nil {
		return fmt.Errorf("history export is not configured")
	}

	records, err := s.List(ctx, subject)
	if err != nil {
		return err
	}
	if err := s.exporter.Export(w, subject, records); err != nil {
		s.logger.Error("Failed to export history", "error", err, "subject", subject.String())
		return fmt.Errorf("export history of %s: %w", subject, err)
	}
	return nil
}
