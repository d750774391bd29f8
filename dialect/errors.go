package dialect

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Error types shared by the builders, the synchronizer and the repository.
var (
	// ErrConfiguration is matched by every ConfigError.
	ErrConfiguration = errors.New("configuration error")

	// ErrNotFound is returned by callers that prefer an error over the 404 sentinel entity.
	ErrNotFound = errors.New("entity not found")

	// ErrUniqueConstraint is matched by driver errors reporting a duplicate key.
	ErrUniqueConstraint = errors.New("unique constraint violation")

	// ErrForeignKeyConstraint is matched by driver errors reporting a broken reference.
	ErrForeignKeyConstraint = errors.New("foreign key constraint violation")

	// ErrNullConstraint is matched by driver errors reporting a NULL in a NOT NULL column.
	ErrNullConstraint = errors.New("null constraint violation")
)

// ConfigError is raised before any network call when a builder or descriptor
// is incomplete or contradictory.
type ConfigError struct {
	Component string
	Message   string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("[%s]: %s", e.Component, e.Message)
}

// Unwrap lets errors.Is(err, ErrConfiguration) match.
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// NewConfigError creates a new ConfigError.
func NewConfigError(component, message string) *ConfigError {
	return &ConfigError{Component: component, Message: message}
}

// DriverError wraps an engine error with its native code.
type DriverError struct {
	Dialect string
	Code    string
	Message string
	SQL     string
	Cause   error
}

// Error implements the error interface.
func (e *DriverError) Error() string {
	return fmt.Sprintf("[SQL_ERROR: %s]: %s", e.Code, e.Message)
}

// Unwrap returns the underlying driver error.
func (e *DriverError) Unwrap() error {
	return e.Cause
}

// Is maps engine codes onto the constraint sentinels.
func (e *DriverError) Is(target error) bool {
	switch target {
	case ErrUniqueConstraint:
		return e.Code == "1062" || e.Code == "23505"
	case ErrForeignKeyConstraint:
		return e.Code == "1451" || e.Code == "1452" || e.Code == "23503"
	case ErrNullConstraint:
		return e.Code == "1048" || e.Code == "23502"
	}
	return false
}

// WrapDriverError converts err into a *DriverError carrying the engine code.
// Errors that already are a DriverError are returned unchanged.
func WrapDriverError(d *Dialect, sql string, err error) error {
	if err == nil {
		return nil
	}

	var driverErr *DriverError
	if errors.As(err, &driverErr) {
		return err
	}

	wrapped := &DriverError{
		Code:    "UNKNOWN",
		Message: err.Error(),
		SQL:     sql,
		Cause:   err,
	}
	if d != nil {
		wrapped.Dialect = d.Name
	}

	var mysqlErr *mysql.MySQLError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &mysqlErr):
		wrapped.Code = strconv.Itoa(int(mysqlErr.Number))
		wrapped.Message = mysqlErr.Message
	case errors.As(err, &pqErr):
		wrapped.Code = string(pqErr.Code)
		wrapped.Message = pqErr.Message
	}

	return wrapped
}
