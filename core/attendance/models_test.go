package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	rec := func(status string) Record { return Record{Status: status} }

	tests := []struct {
		name    string
		records []Record
		want    Summary
	}{
		{name: "no records", want: Summary{}},
		{
			name:    "all present",
			records: []Record{rec(StatusPresent), rec(StatusPresent)},
			want:    Summary{Present: 2, Total: 2, Percentage: 100},
		},
		{
			name:    "late not counted as present",
			records: []Record{rec(StatusPresent), rec(StatusLate), rec(StatusAbsent)},
			want:    Summary{Present: 1, Absent: 1, Late: 1, Total: 3, Percentage: 33},
		},
		{
			name:    "rounded half up",
			records: []Record{rec(StatusPresent), rec(StatusAbsent), rec(StatusPresent), rec(StatusPresent), rec(StatusPresent), rec(StatusAbsent), rec(StatusAbsent), rec(StatusAbsent)},
			want:    Summary{Present: 4, Absent: 4, Total: 8, Percentage: 50},
		},
		{
			name:    "two thirds",
			records: []Record{rec(StatusPresent), rec(StatusPresent), rec(StatusAbsent)},
			want:    Summary{Present: 2, Absent: 1, Total: 3, Percentage: 67},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Summarize(tt.records))
		})
	}
}

func TestCompositeIDs(t *testing.T) {
	assert.Equal(t, "c1_2024-09-30", SheetID("c1", "2024-09-30"))
	assert.Equal(t, "c1_2024-09-30_S001", RecordID("c1", "2024-09-30", "S001"))
}
