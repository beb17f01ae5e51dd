package inmemdb

import "sync"

type (
	userTable struct {
		mutex sync.RWMutex
		table map[string]*userEntry
		seq   int
	}

	classTable struct {
		mutex sync.RWMutex
		table map[string]*classEntry
		seq   int
	}

	notificationTable struct {
		mutex sync.RWMutex
		table map[string]*notificationEntry
		seq   int
	}
)

// DB is a map backed database, safe for concurrent use. Nothing is persisted.
type DB struct {
	user         *userTable
	class        *classTable
	attendance   *attendanceTable
	result       *resultTable
	notification *notificationTable
}

func NewDB() *DB {
	return &DB{
		user:         &userTable{table: make(map[string]*userEntry)},
		class:        &classTable{table: make(map[string]*classEntry)},
		attendance:   newAttendanceTable(),
		result:       newResultTable(),
		notification: &notificationTable{table: make(map[string]*notificationEntry)},
	}
}
