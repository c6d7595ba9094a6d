package domain

// Response is the transport-independent result envelope of one dispatch.
// Exactly one of Response and Error is set.
type Response struct {
	Response any    `json:"response,omitempty"`
	Error    *Error `json:"error,omitempty"`
}

// OK wraps a successful handler result.
func OK(v any) *Response {
	return &Response{Response: v}
}

// Fail wraps a taxonomy error.
func Fail(err *Error) *Response {
	return &Response{Error: err}
}
