package raffle

// Status is the phase of the raffle as a whole.
type Status string

const (
	StatusOpen         Status = "open"
	StatusAwaitingDraw Status = "awaiting_draw"
	StatusDrawn        Status = "drawn"
)

// String returns the string representation
func (s Status) String() string {
	return string(s)
}
