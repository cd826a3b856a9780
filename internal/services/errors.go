package services

import (
	"errors"
	"fmt"

	"family-taxi/internal/repository"
)

// Ошибки сервисного слоя. HTTP слой отображает их в коды ответа через errors.Is.
var (
	ErrNotAuthenticated   = errors.New("требуется авторизация")
	ErrNotAuthorized      = errors.New("недостаточно прав")
	ErrNotFound           = errors.New("не найдено")
	ErrPreconditionFailed = errors.New("операция недоступна в текущем состоянии")
	ErrValidation         = errors.New("некорректные данные")
)

func notFound(what string, id uint) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, what, id)
}

// fromRepo переводит ошибки репозитория в ошибки сервиса
func fromRepo(err error, what string, id uint) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return notFound(what, id)
	case errors.Is(err, repository.ErrStaleStatus):
		return fmt.Errorf("%w: %s %d уже в другом статусе", ErrPreconditionFailed, what, id)
	case errors.Is(err, repository.ErrDriverBusy):
		return fmt.Errorf("%w: у водителя уже есть активная поездка", ErrPreconditionFailed)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %s уже существует", ErrValidation, what)
	}
	return err
}
