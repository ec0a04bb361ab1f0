package provider

// Status classifies a category fetch outcome. The pipeline needs to tell
// "the upstream had nothing" apart from "the upstream failed": both leave
// the category out of the cycle, but only the latter counts as an error.
type Status int

const (
	StatusOK Status = iota
	StatusEmpty
	StatusError
)

// Result is the outcome of one category fetch.
type Result[T any] struct {
	Status Status
	Data   []T
	Err    error
}

// OK returns a populated result.
func OK[T any](data []T) Result[T] {
	if len(data) == 0 {
		return Empty[T]()
	}
	return Result[T]{Status: StatusOK, Data: data}
}

// Empty returns a genuinely-no-data result.
func Empty[T any]() Result[T] {
	return Result[T]{Status: StatusEmpty}
}

// Failed returns an upstream-error result.
func Failed[T any](err error) Result[T] {
	return Result[T]{Status: StatusError, Err: err}
}
