package pipeline

import (
	"fmt"
	"strings"
)

// MissingColumnsError reports required columns absent from the input.
type MissingColumnsError struct {
	Input   string
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Input, strings.Join(e.Columns, ", "))
}
