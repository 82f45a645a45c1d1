package database

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("database: record not found")
	// ErrDuplicate нарушено ограничение уникальности
	ErrDuplicate = errors.New("database: duplicate entry")
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// translate приводит ошибки gorm к ошибкам пакета
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
