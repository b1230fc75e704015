package database

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
	ErrorClassConflict
)

func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001":
			return ErrorClassSerialization
		case "40P01":
			return ErrorClassDeadlock
		case "55P03", "57014":
			return ErrorClassTransient
		case "23505":
			return ErrorClassConflict
		case "23503", "23502", "23514":
			return ErrorClassPermanent
		}
	}

	if errors.Is(err, sql.ErrConnDone) {
		return ErrorClassTransient
	}

	return ErrorClassPermanent
}

// IsRetryable reports whether the caller may safely repeat the whole operation.
func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}

func IsUniqueViolation(err error) bool {
	return ClassifyError(err) == ErrorClassConflict
}

func IsForeignKeyViolation(err error) bool {
	return hasCode(err, "23503")
}

func IsCheckViolation(err error) bool {
	return hasCode(err, "23514")
}

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}

var (
	ErrNotFound          = errors.New("not found")
	ErrUserNotFound      = &notFoundError{"user not found"}
	ErrProductNotFound   = &notFoundError{"product not found"}
	ErrCategoryNotFound  = &notFoundError{"category not found"}
	ErrOrderNotFound     = &notFoundError{"order not found"}
	ErrCartLineNotFound  = &notFoundError{"cart line not found"}
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthenticated   = errors.New("authentication required")
	ErrInvalidRating     = errors.New("rating must be between 1 and 5")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrCategoryCycle     = errors.New("category cannot be its own ancestor")
	ErrDuplicateName     = errors.New("name already exists")
	ErrInvalidArgument   = errors.New("invalid argument")

	ErrOptimisticLockFailed = errors.New("optimistic lock failed")
)

// notFoundError keeps entity-specific messages while still matching ErrNotFound.
type notFoundError struct {
	msg string
}

func (e *notFoundError) Error() string { return e.msg }

func (e *notFoundError) Is(target error) bool { return target == ErrNotFound }
