package postgres

import (
	"fmt"
	"strings"
)

// whereBuilder assembles a parameterized WHERE clause. Column names are
// always constants from this package; only values become arguments.
type whereBuilder struct {
	conditions []string
	args       []any
	argIndex   int
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{argIndex: 1}
}

// add appends "col = $n". Zero values are skipped.
func (wb *whereBuilder) add(col string, value any) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return
		}
	case int64:
		if v == 0 {
			return
		}
	case nil:
		return
	}
	wb.conditions = append(wb.conditions, fmt.Sprintf("%s = $%d", col, wb.argIndex))
	wb.args = append(wb.args, value)
	wb.argIndex++
}

// build returns the clause with a leading space, or "" with nil args when
// nothing was added.
func (wb *whereBuilder) build() (string, []any) {
	if len(wb.conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(wb.conditions, " AND "), wb.args
}

// nextArg is the placeholder index of the next argument appended after build.
func (wb *whereBuilder) nextArg() int {
	return wb.argIndex
}
