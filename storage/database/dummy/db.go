package dummydb

import (
	"sync"

	"github.com/coreymead/zoom-class-builder/core/course"
)

type (
	DB struct {
		course *courseTable
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}
)

func Open() (*DB, error) {
	db := &DB{
		course: &courseTable{table: make(map[string]*course.Course)},
	}
	return db, nil
}

// Reset drops every stored course.
func (db *DB) Reset() {
	db.course.Lock()
	defer db.course.Unlock()
	db.course.table = make(map[string]*course.Course)
}
