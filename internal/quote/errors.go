package quote

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

var (
	// ErrInvalidZip means the input is not exactly five ASCII digits.
	ErrInvalidZip = eris.New("invalid ZIP code")
	// ErrInvalidPayment means the payment is not a positive number.
	ErrInvalidPayment = eris.New("invalid payment amount")
	// ErrNoRateMatch means no table row has the location's city and county.
	ErrNoRateMatch = eris.New("no tax rate found")
)

// NoMatchError reports a rate miss with optional look-alike city names.
type NoMatchError struct {
	City        string
	County      string
	Suggestions []string
}

func (e *NoMatchError) Error() string {
	msg := fmt.Sprintf("no tax rate found for %s, %s", e.City, e.County)
	if len(e.Suggestions) > 0 {
		msg += " (did you mean " + strings.Join(e.Suggestions, ", ") + "?)"
	}
	return msg
}

// Is makes errors.Is(err, ErrNoRateMatch) true.
func (e *NoMatchError) Is(target error) bool {
	return target == ErrNoRateMatch
}
