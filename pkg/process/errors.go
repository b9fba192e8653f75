package process

import "fmt"

// NetworkErrorMessage is reported for every non-2xx reply regardless of status or body.
const NetworkErrorMessage = "Network response was not ok"

// NetworkError means the server answered with a non-2xx status.
type NetworkError struct {
	StatusCode int
	Status     string
}

func (e *NetworkError) Error() string {
	return NetworkErrorMessage
}

// TransportError means the request never completed (refused connection, DNS, timeout...).
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ParseError means the body of a successful reply was not valid JSON.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid JSON response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
