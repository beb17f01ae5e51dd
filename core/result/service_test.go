package result_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/result"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

func score(f float64) *float64 { return &f }

func save(t *testing.T, svc result.Service, classID, examType string, entries ...result.Entry) []result.Record {
	t.Helper()

	_, records, err := svc.Save(context.Background(), classID, result.SaveResults{ExamType: examType, Entries: entries}, "teacher1")
	require.NoError(t, err)
	return records
}

func TestSaveResults_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	tests := []struct {
		name    string
		data    result.SaveResults
		wantErr bool
	}{
		{name: "empty", wantErr: true},
		{name: "unknown exam type", data: result.SaveResults{ExamType: "quiz", Entries: []result.Entry{{StudentID: "S001", Score: score(50)}}}, wantErr: true},
		{name: "missing score", data: result.SaveResults{ExamType: "final", Entries: []result.Entry{{StudentID: "S001"}}}, wantErr: true},
		{name: "score above 100", data: result.SaveResults{ExamType: "final", Entries: []result.Entry{{StudentID: "S001", Score: score(100.5)}}}, wantErr: true},
		{name: "negative score", data: result.SaveResults{ExamType: "final", Entries: []result.Entry{{StudentID: "S001", Score: score(-1)}}}, wantErr: true},
		{name: "zero score", data: result.SaveResults{ExamType: "Final", Entries: []result.Entry{{StudentID: "S001", Score: score(0)}}}},
		{name: "full score", data: result.SaveResults{ExamType: "groupwork", Entries: []result.Entry{{StudentID: "S001", Score: score(100)}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate(validate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Save(t *testing.T) {
	svc := result.NewService(inmemdb.NewResultRepository(inmemdb.NewDB()))
	ctx := context.Background()

	records := save(t, svc, "cls1", result.ExamMidterm,
		result.Entry{StudentID: "S001", Score: score(75)},
		result.Entry{StudentID: "S002", Score: score(64.5)},
		result.Entry{StudentID: "S001", Score: score(80)}, // last entry wins
	)
	require.Len(t, records, 2)
	assert.Equal(t, "cls1_midterm_S001", records[0].ID)
	assert.Equal(t, 80.0, records[0].Score)

	// saving again keeps omitted students
	save(t, svc, "cls1", result.ExamMidterm, result.Entry{StudentID: "S002", Score: score(70)})

	got, err := svc.Results(ctx, "cls1", result.ExamMidterm)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 80.0, got[0].Score)
	assert.Equal(t, 70.0, got[1].Score)

	got, err = svc.Results(ctx, "cls1", result.ExamFinal)
	require.NoError(t, err)
	assert.Empty(t, got)

	sheets, err := svc.Sheets(ctx, "cls1")
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, result.ExamMidterm, sheets[0].ExamType)
}

func TestService_StudentGrades(t *testing.T) {
	svc := result.NewService(inmemdb.NewResultRepository(inmemdb.NewDB()))
	ctx := context.Background()

	save(t, svc, "cls1", result.ExamMidterm, result.Entry{StudentID: "S001", Score: score(80)})
	save(t, svc, "cls1", result.ExamFinal, result.Entry{StudentID: "S001", Score: score(90)}, result.Entry{StudentID: "S002", Score: score(40)})
	save(t, svc, "cls2", result.ExamParticipation, result.Entry{StudentID: "S001", Score: score(55)})

	grades, err := svc.StudentGrades(ctx, "S001")
	require.NoError(t, err)
	require.Len(t, grades, 2)

	assert.Equal(t, "cls1", grades[0].ClassID)
	assert.Equal(t, map[string]float64{result.ExamMidterm: 80, result.ExamFinal: 90}, grades[0].Scores)
	assert.Equal(t, 85.71, grades[0].Score)
	assert.Equal(t, "B", grades[0].Letter)

	assert.Equal(t, "cls2", grades[1].ClassID)
	assert.Equal(t, 55.0, grades[1].Score)
	assert.Equal(t, "F", grades[1].Letter)

	records, err := svc.StudentResults(ctx, "S001", "cls1")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = svc.ClassResults(ctx, "cls1")
	require.NoError(t, err)
	assert.Len(t, records, 3)

	grades, err = svc.StudentGrades(ctx, "S003")
	require.NoError(t, err)
	assert.Empty(t, grades)
}
