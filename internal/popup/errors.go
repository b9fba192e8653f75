package popup

// EmptyInputMessage is the alert shown when the input trims to nothing.
const EmptyInputMessage = "Please enter some text"

// PendingMessage fills the response region while a request is in flight.
const PendingMessage = "Processing..."

// ErrorPrefix starts every failure line in the response region.
const ErrorPrefix = "Error: "

// ValidationError is returned by Submit when the input is blank. Nothing else happens.
type ValidationError struct {
	Input string
}

func (e *ValidationError) Error() string {
	return EmptyInputMessage
}
