package inmemdb

import (
	"context"
	"sort"
	"sync"

	"github.com/trezcool/shule/core/attendance"
)

type attendanceTable struct {
	mutex   sync.RWMutex
	sheets  map[string]attendance.Sheet
	records map[string]attendance.Record
}

func newAttendanceTable() *attendanceTable {
	return &attendanceTable{
		sheets:  make(map[string]attendance.Sheet),
		records: make(map[string]attendance.Record),
	}
}

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db.attendance}
}

func (repo *attendanceRepository) SaveSheet(_ context.Context, sheet attendance.Sheet, records []attendance.Record) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.sheets[sheet.ID] = sheet
	for _, rec := range records {
		repo.db.records[rec.ID] = rec
	}
	return nil
}

func (repo *attendanceRepository) GetSheet(_ context.Context, id string) (attendance.Sheet, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if sheet, ok := repo.db.sheets[id]; ok {
		return sheet, nil
	}
	return attendance.Sheet{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) QuerySheets(_ context.Context, classID string) ([]attendance.Sheet, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	sheets := make([]attendance.Sheet, 0)
	for _, sheet := range repo.db.sheets {
		if sheet.ClassID == classID {
			sheets = append(sheets, sheet)
		}
	}
	sort.Slice(sheets, func(i, j int) bool { return sheets[i].Date < sheets[j].Date })
	return sheets, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter attendance.RecordFilter) ([]attendance.Record, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	records := make([]attendance.Record, 0)
	for _, rec := range repo.db.records {
		switch {
		case filter.AttendanceID != "" && rec.AttendanceID != filter.AttendanceID,
			filter.ClassID != "" && rec.ClassID != filter.ClassID,
			filter.StudentID != "" && rec.StudentID != filter.StudentID,
			filter.DateFrom != "" && rec.Date < filter.DateFrom,
			filter.DateTo != "" && rec.Date > filter.DateTo:
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Date != records[j].Date {
			return records[i].Date < records[j].Date
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records, nil
}
