package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/doc-lifecycle/internal/application/port"
	"github.com/garyjia/doc-lifecycle/internal/domain/entity"
)

// HistorySheet is the name of the worksheet holding transitions
const HistorySheet = "History"

var historyColumns = []struct {
	title string
	width float64
}{
	{"Time", 20},
	{"Action", 18},
	{"From", 18},
	{"To", 18},
	{"Actor", 10},
	{"Reason", 40},
	{"Payload", 50},
}

// HistoryXLSXExporter renders transition history as an Excel workbook
type HistoryXLSXExporter struct {
	logger *zap.Logger
}

var _ port.HistoryExporter = (*HistoryXLSXExporter)(nil)

// NewHistoryXLSXExporter creates a new exporter
func NewHistoryXLSXExporter(logger *zap.Logger) *HistoryXLSXExporter {
	return &HistoryXLSXExporter{logger: logger}
}

// Export writes one row per record under a title and header row. Records
// keep the order they are given in.
func (x *HistoryXLSXExporter) Export(w io.Writer, subject entity.SubjectRef, records []*entity.TransitionRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", HistorySheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	x.setCell(f, "A1", fmt.Sprintf("Transition history of %s", subject))

	for i, col := range historyColumns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		x.setCell(f, name+"2", col.title)
		if err := f.SetColWidth(HistorySheet, name, name, col.width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	if err := f.SetCellStyle(HistorySheet, "A2", "G2", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range records {
		row := i + 3
		values := []interface{}{
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Action,
			r.PreviousStatus,
			r.NewStatus,
			r.ActorID,
			r.Reason,
			r.Payload,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(HistorySheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	if err := f.SetPanes(HistorySheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      2,
		TopLeftCell: "A3",
		ActivePane:  "bottomLeft",
	}); err != nil {
		x.logger.Warn("Failed to freeze header rows", zap.Error(err))
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	x.logger.Info("History exported",
		zap.String("subject", subject.String()),
		zap.Int("records", len(records)))
	return nil
}

func (x *HistoryXLSXExporter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(HistorySheet, cell, value); err != nil {
		x.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
