package inference

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrInvalidRegistration marks a strategy registered without a method id or
// constructor. It is a startup configuration error.
var ErrInvalidRegistration = eris.New("inference: invalid strategy registration")

// UnknownMethodError is returned when a method id is not registered or is not
// an integer. It is a client input error.
type UnknownMethodError struct {
	Raw string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("inference: unknown model_id=%s", e.Raw)
}

// IsUnknownMethod reports whether err (or any error in its chain) is an
// UnknownMethodError.
func IsUnknownMethod(err error) bool {
	var ue *UnknownMethodError
	return errors.As(err, &ue)
}
