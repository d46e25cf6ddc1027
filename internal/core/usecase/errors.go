package usecase

import (
	"errors"

	"github.com/Nzyazin/bankflow/internal/core/logger"
)

// Определение ошибок сервиса
var (
	ErrValidation = errors.New("validation failed")
	ErrFetch      = errors.New("failed to load operations")
	ErrInsert     = errors.New("failed to record operation")
)

const msgRequiredFields = "Please fill in all required fields"

// ValidationError is returned before any store call is made.
type ValidationError struct {
	Message string
	Fields  []logger.Field
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsertError carries the store's message so it can be shown back to the user.
type InsertError struct {
	Message string
	Err     error
}

func (e *InsertError) Error() string { return ErrInsert.Error() + ": " + e.Message }

func (e *InsertError) Unwrap() []error { return []error{ErrInsert, e.Err} }
