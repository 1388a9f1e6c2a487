package allocator

import "fmt"

// InsufficientObservationsError is returned by Predict when the minimum observation
// check is enabled and the batch axis is shorter than the strategy requires.
type InsufficientObservationsError struct {
	Have int
	Need int
}

func (e *InsufficientObservationsError) Error() string {
	return fmt.Sprintf("insufficient observations: have %d, need %d", e.Have, e.Need)
}
