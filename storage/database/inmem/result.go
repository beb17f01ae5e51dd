package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/trezcool/shule/core/result"
)

type resultTable struct {
	mutex   sync.RWMutex
	sheets  map[string]result.Sheet
	records map[string]result.Record
}

func newResultTable() *resultTable {
	return &resultTable{
		sheets:  make(map[string]result.Sheet),
		records: make(map[string]result.Record),
	}
}

type resultRepository struct {
	db *resultTable
}

var _ result.Repository = (*resultRepository)(nil) // interface compliance check

func NewResultRepository(db *DB) *resultRepository {
	return &resultRepository{db: db.result}
}

func (repo *resultRepository) SaveSheet(_ context.Context, sheet result.Sheet, records []result.Record) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.sheets[sheet.ID] = sheet
	for _, rec := range records {
		repo.db.records[rec.ID] = rec
	}
	return nil
}

func (repo *resultRepository) GetSheet(_ context.Context, id string) (result.Sheet, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sheet, ok := repo.db.sheets[id]; ok {
		return sheet, nil
	}
	return result.Sheet{}, result.ErrNotFound
}

func (repo *resultRepository) QuerySheets(_ context.Context, classID string) ([]result.Sheet, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sheets := make([]result.Sheet, 0)
	for _, sheet := range repo.db.sheets {
		if sheet.ClassID == classID {
			sheets = append(sheets, sheet)
		}
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].ExamType < sheets[j].ExamType })
	return sheets, nil
}

func (repo *resultRepository) QueryRecords(_ context.Context, filter result.RecordFilter) ([]result.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]result.Record, 0)
	for _, rec := range repo.db.records {
		switch {
		case filter.ResultsID != "" && rec.ResultsID != filter.ResultsID,
			filter.ClassID != "" && rec.ClassID != filter.ClassID,
			filter.StudentID != "" && rec.StudentID != filter.StudentID,
			filter.ExamType != "" && rec.ExamType != filter.ExamType:
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].ExamType != records[j].ExamType {
			return records[i].ExamType < records[j].ExamType
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records, nil
}
