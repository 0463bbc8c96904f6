// internal/booking/errors.go
package booking

// Kind is the stable, caller-visible classification of a rejected
// reservation request.
type Kind string

const (
	KindArenaNotFound       Kind = "arena_not_found"
	KindReservationNotFound Kind = "reservation_not_found"
	KindInvalidSchedule     Kind = "invalid_schedule"
	KindIllegalSchedule     Kind = "illegal_schedule"
	KindQuotaExceeded       Kind = "quota_exceeded"
	KindSlotTaken           Kind = "slot_taken"
	KindForbidden           Kind = "forbidden"
	KindAlreadyStarted      Kind = "already_started"
)

// RuleError is an expected validation outcome, never a server fault.
// Callers match with errors.Is against the package-level values.
type RuleError struct {
	Kind    Kind
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

// Is matches any RuleError of the same kind, so callers can compare
// against the canonical values below regardless of message.
func (e *RuleError) Is(target error) bool {
	t, ok := target.(*RuleError)
	return ok && t.Kind == e.Kind
}

var (
	ErrArenaNotFound       = &RuleError{KindArenaNotFound, "arena does not exist"}
	ErrReservationNotFound = &RuleError{KindReservationNotFound, "reservation does not exist"}
	ErrInvalidSchedule     = &RuleError{KindInvalidSchedule, "start time is not on the permitted slot grid"}
	ErrIllegalSchedule     = &RuleError{KindIllegalSchedule, "reservation window is not open for this request"}
	ErrQuotaExceeded       = &RuleError{KindQuotaExceeded, "participation quota not yet renewed for this sport"}
	ErrSlotTaken           = &RuleError{KindSlotTaken, "an overlapping reservation already exists"}
	ErrForbidden           = &RuleError{KindForbidden, "requester may not modify this reservation"}
	ErrAlreadyStarted      = &RuleError{KindAlreadyStarted, "reservation has already started"}
)

func ruleError(kind Kind, message string) *RuleError {
	return &RuleError{Kind: kind, Message: message}
}
