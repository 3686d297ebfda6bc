package llm

import "errors"

// ErrNonConforming is returned when the model's tool input does not match the
// requested result shape.
var ErrNonConforming = errors.New("response does not conform to schema")
