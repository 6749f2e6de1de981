package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/animelens/internal/logging"
)

// LoadOptions controls how the source file is read.
type LoadOptions struct {
	// Delimiter for CSV. If 0, '.tsv' files use tab and everything else comma.
	Delimiter rune
	// MaxRows limits data rows read; 0 means unlimited.
	MaxRows int
}

// LoadStats summarizes what the loader kept and dropped.
type LoadStats struct {
	Rows         int  `json:"rows"`
	Kept         int  `json:"kept"`
	MissingScore int  `json:"missing_score"`
	MissingType  int  `json:"missing_type"`
	Malformed    int  `json:"malformed"`
	Truncated    bool `json:"truncated,omitempty"`
}

// Revision identifies one version of a source file.
type Revision struct {
	Path    string `json:"path"`
	ModTime int64  `json:"mod_time"`
	Size    int64  `json:"size"`
}

// Table is the normalized, read-only record set produced from one source revision.
type Table struct {
	Revision Revision
	Records  []Record
	Stats    LoadStats
	LoadedAt time.Time
}

// Len returns the number of records.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// column header names, lowercased
const (
	colID          = "mal_id"
	colName        = "name"
	colScore       = "score"
	colGenres      = "genres"
	colType        = "type"
	colEpisodes    = "episodes"
	colAired       = "aired"
	colStudios     = "studios"
	colPopularity  = "popularity"
	colMembers     = "members"
	colFavorites   = "favorites"
	colWatching    = "watching"
	colCompleted   = "completed"
	colOnHold      = "on-hold"
	colDropped     = "dropped"
	colPlanToWatch = "plan to watch"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

// Load reads, coerces and normalizes the file at path.
func Load(path string, opt LoadOptions) (*Table, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat dataset: %w", err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	if opt.Delimiter == 0 {
		opt.Delimiter = sniffDelimiter(abs)
	}
	start := time.Now()
	recs, stats, err := ReadRecords(f, opt)
	if err != nil {
		return nil, err
	}
	t := &Table{
		Revision: Revision{Path: abs, ModTime: info.ModTime().UnixNano(), Size: info.Size()},
		Records:  Normalize(recs),
		Stats:    stats,
		LoadedAt: time.Now(),
	}
	logging.With("dataset").Debug().
		Str("path", abs).
		Int("rows", stats.Rows).
		Int("kept", stats.Kept).
		Int("missing_score", stats.MissingScore).
		Int("missing_type", stats.MissingType).
		Int("malformed", stats.Malformed).
		Dur("took", time.Since(start)).
		Msg("dataset loaded")
	return t, nil
}

// ReadRecords parses CSV rows into records with numeric coercion applied.
// Rows missing score or type are dropped. The returned records are not yet
// normalized (Year and Genres are unset).
func ReadRecords(src io.Reader, opt LoadOptions) ([]Record, LoadStats, error) {
	var stats LoadStats
	r := csv.NewReader(src)
	r.ReuseRecord = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true
	if opt.Delimiter != 0 {
		r.Comma = opt.Delimiter
	}

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, fmt.Errorf("read header: empty file: %w", ErrMissingColumn)
		}
		return nil, stats, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	for _, req := range []string{colScore, colType} {
		if _, ok := idx[req]; !ok {
			return nil, stats, fmt.Errorf("%w: %s", ErrMissingColumn, req)
		}
	}
	get := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	maxRows := opt.MaxRows
	if maxRows <= 0 {
		maxRows = math.MaxInt
	}
	log := logging.With("dataset")
	var out []Record
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				stats.Malformed++
				log.Debug().Int("line", pe.Line).Err(pe.Err).Msg("skipping malformed row")
				continue
			}
			return nil, stats, fmt.Errorf("read row %d: %w", stats.Rows+1, err)
		}
		if stats.Rows >= maxRows {
			stats.Truncated = true
			break
		}
		stats.Rows++

		score := ParseScore(get(rec, colScore))
		typ := get(rec, colType)
		if score == nil {
			stats.MissingScore++
			continue
		}
		if typ == "" {
			stats.MissingType++
			continue
		}
		id := 0
		if p := ParseCount(get(rec, colID)); p != nil {
			id = *p
		}
		studio := get(rec, colStudios)
		if studio == "" {
			studio = UnknownStudio
		}
		out = append(out, Record{
			ID:          id,
			Name:        get(rec, colName),
			Score:       score,
			Type:        typ,
			Episodes:    ParseCount(get(rec, colEpisodes)),
			Aired:       get(rec, colAired),
			Studio:      studio,
			GenresRaw:   get(rec, colGenres),
			Popularity:  ParseCount(get(rec, colPopularity)),
			Members:     ParseCount(get(rec, colMembers)),
			Favorites:   ParseCount(get(rec, colFavorites)),
			Watching:    ParseCount(get(rec, colWatching)),
			Completed:   ParseCount(get(rec, colCompleted)),
			OnHold:      ParseCount(get(rec, colOnHold)),
			Dropped:     ParseCount(get(rec, colDropped)),
			PlanToWatch: ParseCount(get(rec, colPlanToWatch)),
		})
	}
	stats.Kept = len(out)
	return out, stats, nil
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}
