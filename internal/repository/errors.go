// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by id yields no rows.  Handlers
// translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as deleting a
// screening that still has bookings or scheduling two screenings
// into the same screen at the same time. Handlers should translate
// this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by UserRepo.Create on a duplicate email.
var ErrEmailExists = errors.New("email already exists")

// SeatsUnavailableError lists the requested seats that could not be held
// because they are already held, sold or blocked.
type SeatsUnavailableError struct {
	SeatIDs []uint64
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats already booked: %v", e.SeatIDs)
}

// Is lets errors.Is(err, ErrConflict) match an unavailable-seats error.
func (e *SeatsUnavailableError) Is(target error) bool { return target == ErrConflict }

// isDuplicateKey reports whether err is a MySQL duplicate entry error (1062).
func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "1062")
}

// placeholders returns "?, ?, ?" for n arguments and the ids as []interface{}.
func placeholders(ids []uint64) (string, []interface{}) {
	ph := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args[i] = id
	}
	return strings.Join(ph, ", "), args
}
