package validation

import "fmt"

// LineError rejects one line of a cart or manual order.
type LineError struct {
	Index     int
	ProductID string
	Color     string
	Size      string
	Requested int
	Available int
	Err       error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d (%s): %v", e.Index, e.label(), e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

func (e *LineError) label() string {
	s := e.ProductID
	if e.Color != "" {
		s += "/" + e.Color
	}
	if e.Size != "" {
		s += "/" + e.Size
	}
	return s
}
