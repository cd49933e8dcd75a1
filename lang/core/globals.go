package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/ardnew/cairn/lang"
)

// ErrFail is returned by the fail global.
var ErrFail = errors.New("template failure")

func globals() map[string]any {
	return map[string]any{
		"now":   time.Now,
		"fail":  fail,
		"range": rangeOf,
	}
}

// fail aborts rendering with msg.
func fail(msg ...any) error {
	if len(msg) == 0 {
		return ErrFail
	}

	return fmt.Errorf("%w: %s", ErrFail, lang.ToString(msg[0]))
}

// rangeOf returns the integers of range(stop), range(start, stop) or
// range(start, stop, step).
func rangeOf(bounds ...int) ([]any, error) {
	start, stop, step := 0, 0, 1

	switch len(bounds) {
	case 1:
		stop = bounds[0]
	case 2:
		start, stop = bounds[0], bounds[1]
	case 3:
		start, stop, step = bounds[0], bounds[1], bounds[2]
	default:
		return nil, fmt.Errorf("range: %w: expected 1 to 3 arguments, got %d",
			lang.ErrInvalidOperand, len(bounds))
	}

	if step == 0 {
		return nil, fmt.Errorf("range: %w: step must not be zero", lang.ErrInvalidOperand)
	}

	var out []any

	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		out = append(out, int64(i))
	}

	return out, nil
}
