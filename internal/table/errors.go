package table

import "fmt"

// MalformedRowError 行字段数与表头不一致
type MalformedRowError struct {
	Line     int
	Expected int
	Got      int
	Text     string
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("malformed row at line %d: expected %d fields, got %d (%q)", e.Line, e.Expected, e.Got, e.Text)
}
