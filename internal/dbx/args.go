package dbx

import (
	"database/sql"
	"strconv"
	"strings"
	"time"
)

// Args collects positional arguments while a query is assembled from
// fragments, handing out matching $n placeholders.
type Args struct {
	values []any
}

// Add appends v and returns its placeholder.
func (a *Args) Add(v any) string {
	a.values = append(a.values, v)
	return "$" + strconv.Itoa(len(a.values))
}

// List appends each element and returns a comma-separated placeholder list,
// e.g. "$3, $4, $5".
func List[T any](a *Args, vs []T) string {
	ph := make([]string, len(vs))
	for i, v := range vs {
		ph[i] = a.Add(v)
	}
	return strings.Join(ph, ", ")
}

func (a *Args) Values() []any {
	return a.values
}

func (a *Args) Len() int {
	return len(a.values)
}

// NullString maps "" to SQL NULL.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// NullTime maps the zero time to SQL NULL.
func NullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
