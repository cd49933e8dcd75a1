package repl

import "errors"

// ErrEditDeclined reports that the user gave up correcting edited data.
var ErrEditDeclined = errors.New("edit declined")
