package note

import "errors"

// ErrEmptyInput is returned when note generation is requested with an empty
// transcript. It is fatal for that single request; nothing is rendered.
var ErrEmptyInput = errors.New("note: empty transcript")

// ErrUnknownNoteType is returned for a request naming an unsupported format.
var ErrUnknownNoteType = errors.New("note: unknown note type")
