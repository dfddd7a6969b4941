package httpapi

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
)

// IncidentExportHeader 事件导出表头
var IncidentExportHeader = []string{
	"Incident ID",
	"Alert ID",
	"Patient ID",
	"Room",
	"Alert Type",
	"Severity",
	"Status",
	"Assigned To",
	"Created At",
	"Acknowledged At",
	"Resolved At",
	"Response Time (s)",
	"Resolution Time (s)",
	"Total Time (s)",
	"Resolution Notes",
	"Intermediate Notes",
}

// GenerateIncidentExport 生成事件列表 Excel 文件
// incidents 为空时只生成表头
func GenerateIncidentExport(incidents []*domain.Incident) ([]byte, error) {
	f := excelize.NewFile()
	// 注意：这里不能 defer Close()，WriteTo 需要文件保持打开

	sheetName := "Incidents"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	// 写入表头
	for col, header := range IncidentExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	// 写入数据
	for rowIdx, inc := range incidents {
		row := rowIdx + 2 // 第 1 行是表头
		values := []interface{}{
			inc.IncidentID,
			inc.AlertID,
			inc.PatientID,
			inc.Room,
			inc.AlertType,
			inc.Severity,
			string(inc.Status),
			stringOrEmpty(inc.AssignedTo),
			formatTime(&inc.CreatedAt),
			formatTime(inc.AcknowledgedAt),
			formatTime(inc.ResolvedAt),
			floatOrEmpty(inc.ResponseTimeSeconds),
			floatOrEmpty(inc.ResolutionTimeSeconds),
			floatOrEmpty(inc.TotalTimeSeconds),
			stringOrEmpty(inc.ResolutionNotes),
			strings.Join(inc.IntermediateNotes, "\n"),
		}
		for col, value := range values {
			if value == nil || value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell value at row %d, col %d: %w", row, col+1, err)
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatOrEmpty(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}
