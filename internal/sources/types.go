package sources

import (
	"errors"
	"fmt"
)

// PriceSnapshot maps a lowercase currency code to the asset price in that
// currency.
type PriceSnapshot map[string]float64

var (
	// ErrTransport covers network unreachable, DNS and timeouts.
	ErrTransport = errors.New("transport failure")
	// ErrStatus is a non-2xx response from the price source.
	ErrStatus = errors.New("unexpected status")
	// ErrDecode is a body that is not the expected JSON shape.
	ErrDecode = errors.New("decode failure")
)

// FetchError is returned by FetchPrices. Kind is one of the sentinel errors
// above, so callers can use errors.Is.
type FetchError struct {
	Kind   error
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%v: http %d: %v", e.Kind, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%v: http %d", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%v: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

func (e *FetchError) Is(target error) bool { return target == e.Kind }

func (e *FetchError) Unwrap() error { return e.Err }
