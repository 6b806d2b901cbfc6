package excel

// Fixed identifier columns of the panel table
const (
	ColumnCountry = "country"
	ColumnPeriod  = "period"
)

// RawTable is a decoded file before typing: trimmed headers and string cells.
type RawTable struct {
	Headers []string
	Rows    [][]string
}

// index maps header names to column positions.
func (t *RawTable) index() map[string]int {
	idx := make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}
