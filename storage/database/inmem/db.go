package inmemdb

import (
	"sync"

	"github.com/trezcool/matokeo/core/pupil"
)

type (
	DB struct {
		pupil *pupilTable
	}

	pupilRecord struct {
		pupil.Pupil
		seq int // insertion order
	}

	pupilTable struct {
		sync.RWMutex
		table map[string]*pupilRecord
		seq   int
	}
)

func Open() (*DB, error) {
	db := &DB{
		pupil: &pupilTable{table: make(map[string]*pupilRecord)},
	}
	return db, nil
}
