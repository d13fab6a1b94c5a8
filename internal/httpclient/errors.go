package httpclient

import "fmt"

// TransportError wraps a failure sending a request or reading its
// response, fatal to the owning document per spec.md §7.
type TransportError struct {
	URL     string
	Message string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("http transport error (%s): %s", e.URL, e.Message)
}
