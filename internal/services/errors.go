package services

import (
	"errors"
	"fmt"

	"github.com/thereayou/interview-rooms/internal/database"
)

// ErrorCode стабильный код ошибки для клиента
type ErrorCode string

const (
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeForbidden    ErrorCode = "FORBIDDEN"
	CodeValidation   ErrorCode = "VALIDATION_ERROR"
	CodeLimitReached ErrorCode = "LIMIT_REACHED"
	CodeConflict     ErrorCode = "CONFLICT"
	CodeUnknown      ErrorCode = "UNKNOWN"
)

const internalMessage = "internal server error"

// Error ошибка бизнес-правила; Field заполняется для ошибок конкретного поля формы
type Error struct {
	Code    ErrorCode
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает по коду, чтобы errors.Is(err, ErrForbidden) работал для любого сообщения
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrNotFound     = &Error{Code: CodeNotFound, Message: "not found"}
	ErrForbidden    = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrValidation   = &Error{Code: CodeValidation, Message: "validation failed"}
	ErrLimitReached = &Error{Code: CodeLimitReached, Message: "room participant limit reached"}
	ErrConflict     = &Error{Code: CodeConflict, Message: "conflict"}
	ErrInternal     = &Error{Code: CodeUnknown, Message: internalMessage}
)

func notFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

func forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

func validation(field, message string) *Error {
	return &Error{Code: CodeValidation, Message: message, Field: field}
}

func conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// internal скрывает детали хранилища; исходная ошибка доступна через Unwrap для логов
func internal(op string, err error) *Error {
	return &Error{Code: CodeUnknown, Message: internalMessage, Err: fmt.Errorf("%s: %w", op, err)}
}

// AsError приводит любую ошибку к *Error; неизвестные становятся UNKNOWN
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeUnknown, Message: internalMessage, Err: err}
}

// PublicMessage текст, безопасный для отправки клиенту
func PublicMessage(err error) string {
	e := AsError(err)
	if e.Code == CodeUnknown {
		return internalMessage
	}
	return e.Message
}

func isNotFound(err error) bool {
	return errors.Is(err, database.ErrNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, database.ErrDuplicate)
}
