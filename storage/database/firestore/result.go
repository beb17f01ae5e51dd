package firestorerepos

import (
	"context"
	"sort"

	"cloud.google.com/go/firestore"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/result"
)

func setResultsSheetID(sheet *result.Sheet, id string) { sheet.ID = id }
func setResultsRecordID(rec *result.Record, id string) { rec.ID = id }

type resultRepository struct {
	client *firestore.Client
}

var _ result.Repository = (*resultRepository)(nil) // interface compliance check

func NewResultRepository(client *firestore.Client) *resultRepository {
	return &resultRepository{client: client}
}

func (repo resultRepository) SaveSheet(ctx context.Context, sheet result.Sheet, records []result.Record) error {
	sheets := repo.client.Collection(resultsCollection)
	recs := repo.client.Collection(resultsRecordsCollection)

	err := repo.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(sheets.Doc(sheet.ID), sheet); err != nil {
			return err
		}
		for _, rec := range records {
			if err := tx.Set(recs.Doc(rec.ID), rec); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.Wrap(err, "saving results sheet")
}

func (repo resultRepository) GetSheet(ctx context.Context, id string) (result.Sheet, error) {
	if id == "" {
		return result.Sheet{}, result.ErrNotFound
	}
	return getOne(ctx, repo.client.Collection(resultsCollection).Doc(id), result.ErrNotFound, setResultsSheetID)
}

func (repo resultRepository) QuerySheets(ctx context.Context, classID string) ([]result.Sheet, error) {
	q := repo.client.Collection(resultsCollection).Where(fieldClassID, "==", classID)
	sheets, err := getAll(ctx, q, setResultsSheetID)
	if err != nil {
		return nil, errors.Wrap(err, "querying results sheets")
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].ExamType < sheets[j].ExamType })
	return sheets, nil
}

func (repo resultRepository) QueryRecords(ctx context.Context, filter result.RecordFilter) ([]result.Record, error) {
	q := repo.client.Collection(resultsRecordsCollection).Query
	if filter.ResultsID != "" {
		q = q.Where(fieldResultsID, "==", filter.ResultsID)
	}
	if filter.ClassID != "" {
		q = q.Where(fieldClassID, "==", filter.ClassID)
	}
	if filter.StudentID != "" {
		q = q.Where(fieldStudentID, "==", filter.StudentID)
	}
	if filter.ExamType != "" {
		q = q.Where(fieldExamType, "==", filter.ExamType)
	}

	records, err := getAll(ctx, q, setResultsRecordID)
	if err != nil {
		return nil, errors.Wrap(err, "querying results records")
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].ExamType != records[j].ExamType {
			return records[i].ExamType < records[j].ExamType
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records, nil
}
