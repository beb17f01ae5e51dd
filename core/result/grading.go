package result

import (
	"math"
	"sort"
)

// Weights of each exam type in the overall grade.
var Weights = map[string]float64{
	ExamMidterm:       0.3,
	ExamFinal:         0.4,
	ExamGroupWork:     0.2,
	ExamParticipation: 0.1,
}

// Grade is the overall grade of a student in a class.
type Grade struct {
	ClassID string             `json:"class_id"`
	Scores  map[string]float64 `json:"scores"`
	Score   float64            `json:"score"` // weighted average, 2 decimals
	Letter  string             `json:"grade"`
}

// WeightedAverage averages the scores of the exam types present, weighted by Weights and normalized by
// the sum of the weights present. Unknown exam types are ignored. Returns 0 when no score is present.
func WeightedAverage(scores map[string]float64) float64 {
	var total, weights float64
	for examType, score := range scores {
		w, ok := Weights[examType]
		if !ok {
			continue
		}
		total += score * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return total / weights
}

// LetterGrade maps a score to its letter: A >= 90, B >= 80, C >= 70, D >= 60, F otherwise.
func LetterGrade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

// ReportTotal is the fixed-weight total of the scores: missing exam types count as 0.
func ReportTotal(scores map[string]float64) float64 {
	var total float64
	for examType, w := range Weights {
		total += scores[examType] * w
	}
	return Round2(total)
}

func Round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// ScoresByStudent groups records by student ID, then exam type.
func ScoresByStudent(records []Record) map[string]map[string]float64 {
	scores := make(map[string]map[string]float64)
	for _, rec := range records {
		s, ok := scores[rec.StudentID]
		if !ok {
			s = make(map[string]float64, len(Weights))
			scores[rec.StudentID] = s
		}
		s[rec.ExamType] = rec.Score
	}
	return scores
}

// OverallGrades computes the grade of each class in records, ordered by class ID.
// Records are expected to belong to a single student.
func OverallGrades(records []Record) []Grade {
	byClass := make(map[string]map[string]float64)
	for _, rec := range records {
		s, ok := byClass[rec.ClassID]
		if !ok {
			s = make(map[string]float64, len(Weights))
			byClass[rec.ClassID] = s
		}
		s[rec.ExamType] = rec.Score
	}

	grades := make([]Grade, 0, len(byClass))
	for classID, scores := range byClass {
		// the letter uses the unrounded average
		raw := WeightedAverage(scores)
		grades = append(grades, Grade{
			ClassID: classID,
			Scores:  scores,
			Score:   Round2(raw),
			Letter:  LetterGrade(raw),
		})
	}
	sort.Slice(grades, func(i, j int) bool { return grades[i].ClassID < grades[j].ClassID })
	return grades
}
