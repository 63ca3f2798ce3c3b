package mode

// Mode is the query form being executed.
type Mode string

// Query mode constants.
const (
	// Event filters single events.
	Event Mode = "event"
	// Sequence correlates ordered stages by join key.
	Sequence Mode = "sequence"
	// Join correlates unordered stages by join key.
	Join Mode = "join"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Event || m == Sequence || m == Join
}

// Correlated reports whether results are built from several stages.
func (m Mode) Correlated() bool { return m == Sequence || m == Join }
