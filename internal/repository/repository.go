// Package repository хранит поездки, пользователей и сохранённые места в PostgreSQL через gorm.
package repository

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotFound = errors.New("запись не найдена")
	// ErrStaleStatus - условное обновление не затронуло ни одной строки:
	// поездка уже в другом статусе или принадлежит другому участнику.
	ErrStaleStatus = errors.New("статус поездки уже изменился")
	ErrDriverBusy  = errors.New("у водителя уже есть активная поездка")
	ErrDuplicate   = errors.New("запись уже существует")
)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	return err
}

// forUpdate добавляет SELECT ... FOR UPDATE там, где диалект поддерживает блокировку строк
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}
