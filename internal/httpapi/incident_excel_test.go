package httpapi

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
)

func TestGenerateIncidentExport(t *testing.T) {
	assigned := "Dr. Chen"
	responseTime := 42.0
	incidents := []*domain.Incident{
		{
			IncidentID:          "INC-1",
			AlertID:             "ALT-1",
			PatientID:           "PAT-1",
			Room:                "301",
			AlertType:           "CARDIAC_ARREST",
			Severity:            "CRITICAL",
			Status:              domain.StatusAcknowledged,
			AssignedTo:          &assigned,
			CreatedAt:           time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC),
			ResponseTimeSeconds: &responseTime,
			IntermediateNotes:   []string{"[10:01:00] on my way"},
		},
	}

	data, err := GenerateIncidentExport(incidents)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Incidents", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Incident ID", header)

	id, err := f.GetCellValue("Incidents", "A2")
	require.NoError(t, err)
	assert.Equal(t, "INC-1", id)

	status, err := f.GetCellValue("Incidents", "G2")
	require.NoError(t, err)
	assert.Equal(t, "ACKNOWLEDGED", status)
}

func TestGenerateIncidentExport_EmptyList(t *testing.T) {
	data, err := GenerateIncidentExport(nil)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Incidents")
	require.NoError(t, err)
	assert.Len(t, rows, 1) // 只有表头
}
