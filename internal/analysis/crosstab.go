package analysis

import (
	"sort"

	"github.com/KaramelBytes/animelens/internal/dataset"
)

// Crosstab counts records per (row label, column label) pair. A record with
// several labels on a multi-label field contributes to each of them.
type Crosstab struct {
	RowField string   `json:"row_field"`
	ColField string   `json:"col_field"`
	Rows     []string `json:"rows"`
	Cols     []string `json:"cols"`
	Counts   [][]int  `json:"counts"`
}

// CrossTabulate builds a crosstab over two label fields. Rows and columns are
// sorted; limit > 0 keeps only the most frequent row labels.
func CrossTabulate(records []dataset.Record, row, col dataset.LabelField, limit int) Crosstab {
	keepRows := map[string]bool{}
	if limit > 0 {
		for _, c := range CategoryFrequency(records, row).Top(limit) {
			keepRows[c.Value] = true
		}
	}
	cells := map[[2]string]int{}
	rowSet := map[string]bool{}
	colSet := map[string]bool{}
	for _, r := range records {
		cols := col.Labels(r)
		if len(cols) == 0 {
			continue
		}
		for _, rl := range row.Labels(r) {
			if limit > 0 && !keepRows[rl] {
				continue
			}
			rowSet[rl] = true
			for _, cl := range cols {
				colSet[cl] = true
				cells[[2]string{rl, cl}]++
			}
		}
	}
	ct := Crosstab{RowField: row.Name, ColField: col.Name, Rows: sortedKeys(rowSet), Cols: sortedKeys(colSet)}
	ct.Counts = make([][]int, len(ct.Rows))
	for i, rl := range ct.Rows {
		ct.Counts[i] = make([]int, len(ct.Cols))
		for j, cl := range ct.Cols {
			ct.Counts[i][j] = cells[[2]string{rl, cl}]
		}
	}
	return ct
}

// Cell returns the count for a pair, 0 if absent.
func (c Crosstab) Cell(row, col string) int {
	i := sort.SearchStrings(c.Rows, row)
	j := sort.SearchStrings(c.Cols, col)
	if i >= len(c.Rows) || c.Rows[i] != row || j >= len(c.Cols) || c.Cols[j] != col {
		return 0
	}
	return c.Counts[i][j]
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// StatusTotal is the summed audience for one viewing status.
type StatusTotal struct {
	Status  string  `json:"status"`
	Total   int64   `json:"total"`
	Share   float64 `json:"share"`
	Records int     `json:"records"`
}

// Engagement sums each viewing-status counter across records. Share is the
// fraction of the grand total; all shares are zero when nothing was counted.
func Engagement(records []dataset.Record) []StatusTotal {
	out := make([]StatusTotal, len(dataset.EngagementFields))
	var grand int64
	for i, f := range dataset.EngagementFields {
		out[i].Status = f.Name
		for _, r := range records {
			if v, ok := f.Get(r); ok {
				out[i].Total += int64(v)
				out[i].Records++
			}
		}
		grand += out[i].Total
	}
	if grand > 0 {
		for i := range out {
			out[i].Share = float64(out[i].Total) / float64(grand)
		}
	}
	return out
}
