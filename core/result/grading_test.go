package result

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWeightedAverage(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   float64
	}{
		{name: "no scores", scores: map[string]float64{}, want: 0},
		{name: "nil scores", want: 0},
		{name: "single exam", scores: map[string]float64{ExamMidterm: 80}, want: 80},
		{name: "midterm and final", scores: map[string]float64{ExamMidterm: 80, ExamFinal: 90}, want: (80*0.3 + 90*0.4) / 0.7},
		{
			name:   "all exams",
			scores: map[string]float64{ExamMidterm: 70, ExamFinal: 80, ExamGroupWork: 90, ExamParticipation: 100},
			want:   70*0.3 + 80*0.4 + 90*0.2 + 100*0.1,
		},
		{name: "unknown exam ignored", scores: map[string]float64{"quiz": 10, ExamFinal: 50}, want: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, WeightedAverage(tt.scores), 1e-9)
		})
	}
}

func TestLetterGrade(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{100, "A"}, {90, "A"}, {89.99, "B"}, {80, "B"}, {79.5, "C"}, {70, "C"},
		{69.99, "D"}, {60, "D"}, {59.99, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LetterGrade(tt.score), "LetterGrade(%v)", tt.score)
	}
}

func TestReportTotal(t *testing.T) {
	tests := []struct {
		name   string
		scores map[string]float64
		want   float64
	}{
		{name: "no scores", want: 0},
		{name: "missing counted as zero", scores: map[string]float64{ExamMidterm: 80, ExamFinal: 90}, want: 60},
		{
			name:   "all exams",
			scores: map[string]float64{ExamMidterm: 75.5, ExamFinal: 88, ExamGroupWork: 91, ExamParticipation: 100},
			want:   86.05,
		},
		{name: "rounded to 2 decimals", scores: map[string]float64{ExamMidterm: 33.333}, want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReportTotal(tt.scores))
		})
	}
}

func TestOverallGrades(t *testing.T) {
	records := []Record{
		{ClassID: "b", ExamType: ExamFinal, Score: 55},
		{ClassID: "a", ExamType: ExamMidterm, Score: 80},
		{ClassID: "a", ExamType: ExamFinal, Score: 90},
		{ClassID: "a", ExamType: ExamGroupWork, Score: 100},
	}
	grades := OverallGrades(records)
	if assert.Len(t, grades, 2) {
		assert.Equal(t, "a", grades[0].ClassID)
		assert.Equal(t, 88.89, grades[0].Score) // (24 + 36 + 20) / 0.9
		assert.Equal(t, "B", grades[0].Letter)
		assert.Len(t, grades[0].Scores, 3)

		assert.Equal(t, "b", grades[1].ClassID)
		assert.Equal(t, 55.0, grades[1].Score)
		assert.Equal(t, "F", grades[1].Letter)
	}

	assert.Empty(t, OverallGrades(nil))
}

func TestOverallGrades_letterBoundary(t *testing.T) {
	tests := []struct {
		name       string
		midterm    float64
		final      float64
		wantScore  float64
		wantLetter string
	}{
		{name: "just under A", midterm: 89.99, final: 90, wantScore: 90.00, wantLetter: "B"},
		{name: "exactly A", midterm: 90, final: 90, wantScore: 90, wantLetter: "A"},
		{name: "just under C", midterm: 69.99, final: 70, wantScore: 70.00, wantLetter: "D"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grades := OverallGrades([]Record{
				{ClassID: "c", ExamType: ExamMidterm, Score: tt.midterm},
				{ClassID: "c", ExamType: ExamFinal, Score: tt.final},
			})
			if assert.Len(t, grades, 1) {
				assert.Equal(t, tt.wantScore, grades[0].Score)
				assert.Equal(t, tt.wantLetter, grades[0].Letter)
			}
		})
	}
}

func TestScoresByStudent(t *testing.T) {
	scores := ScoresByStudent([]Record{
		{StudentID: "S1", ExamType: ExamMidterm, Score: 40},
		{StudentID: "S1", ExamType: ExamFinal, Score: 60},
		{StudentID: "S2", ExamType: ExamFinal, Score: 70},
	})
	assert.Equal(t, map[string]map[string]float64{
		"S1": {ExamMidterm: 40, ExamFinal: 60},
		"S2": {ExamFinal: 70},
	}, scores)
}
