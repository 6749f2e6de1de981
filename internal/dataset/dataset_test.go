package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var animeRows = []string{
	"MAL_ID,Name,Score,Genres,English name,Type,Episodes,Aired,Premiered,Studios,Popularity,Members,Favorites,Watching,Completed,On-Hold,Dropped,Plan to Watch",
	`1,Cowboy Bebop,8.78,"Action, Adventure, Comedy, Drama, Sci-Fi, Space",Cowboy Bebop,TV,26,"Apr 3, 1998 to Apr 24, 1999",Spring 1998,Sunrise,39,1251960,61971,105808,718161,71513,26678,329800`,
	`5,Cowboy Bebop: Tengoku no Tobira,8.39,"Action, Drama, Mystery, Sci-Fi, Space",Cowboy Bebop:The Movie,Movie,1,"Sep 1, 2001",Unknown,Bones,518,273145,1174,4143,208333,1935,770,57964`,
	`6,Trigun,8.24,"Action, Sci-Fi, Adventure, Comedy, Drama, Shounen",Trigun,TV,26,"Apr 1, 1998 to Sep 30, 1998",Spring 1998,Madhouse,201,558913,12944,29113,343492,25465,13925,146918`,
	`7,Witch Hunter Robin,Unknown,"Action, Mystery, Police, Supernatural, Drama, Magic",Witch Hunter Robin,TV,26,"Jul 2, 2002 to Dec 24, 2002",Summer 2002,Sunrise,1467,94683,587,4300,46165,5121,5378,33719`,
	`8,Bouken Ou Beet,7.50,,Beet the Vandel Buster,,52,"Sep 30, 2004 to Sep 29, 2005",Fall 2004,Toei Animation,4369,13224,18,642,7314,766,1108,3394`,
	`9,Untitled Short,N/A,"Comedy",,ONA,Unknown,Not available,,,,,,,,,,`,
	`10,Mystery Pilot,6.10,,,OVA,Unknown,Not available,,,9000,1200,0,10,20,0,5,40`,
}

func writeCSV(t *testing.T, rows []string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "anime.csv")
	if err := os.WriteFile(p, []byte(strings.Join(rows, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return p
}

func TestParseScoreBoundaries(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"N/A", 0, false},
		{"", 0, false},
		{"Unknown", 0, false},
		{"7.50", 7.5, true},
		{" 8.78 ", 8.78, true},
		{"1.0", 1, true},
		{"10", 10, true},
		{"0.5", 0, false},
		{"11.2", 0, false},
		{"NaN", 0, false},
	}
	for _, c := range cases {
		got := ParseScore(c.in)
		if (got != nil) != c.ok {
			t.Errorf("ParseScore(%q) present=%v, want %v", c.in, got != nil, c.ok)
			continue
		}
		if got != nil && *got != c.want {
			t.Errorf("ParseScore(%q) = %v, want %v", c.in, *got, c.want)
		}
	}
}

func TestParseCount(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"26", 26, true},
		{"0", 0, true},
		{"1,251,960", 1251960, true},
		{"12.0", 12, true},
		{"12.5", 0, false},
		{"-3", 0, false},
		{"Unknown", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got := ParseCount(c.in)
		if (got != nil) != c.ok {
			t.Errorf("ParseCount(%q) present=%v, want %v", c.in, got != nil, c.ok)
			continue
		}
		if got != nil && *got != c.want {
			t.Errorf("ParseCount(%q) = %d, want %d", c.in, *got, c.want)
		}
	}
}

func TestExtractYear(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"Apr 3, 1998 to Apr 24, 1999", 1998, true},
		{"2021", 2021, true},
		{"Sep 1, 2001", 2001, true},
		{"Not available", 0, false},
		{"", 0, false},
		{"ID 123456 then 2010", 2010, true},
		{"Ep 12", 0, false},
	}
	for _, c := range cases {
		got := ExtractYear(c.in)
		if (got != nil) != c.ok {
			t.Errorf("ExtractYear(%q) present=%v, want %v", c.in, got != nil, c.ok)
			continue
		}
		if got != nil && *got != c.want {
			t.Errorf("ExtractYear(%q) = %d, want %d", c.in, *got, c.want)
		}
	}
}

func TestSplitGenres(t *testing.T) {
	for _, in := range []string{"", "   ", ",", ", , "} {
		got := SplitGenres(in)
		if got == nil || len(got) != 0 {
			t.Fatalf("SplitGenres(%q) = %#v, want empty non-nil", in, got)
		}
	}
	got := SplitGenres("Action, Comedy,Drama, Action")
	want := []string{"Action", "Comedy", "Drama"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("SplitGenres = %#v, want %#v", got, want)
	}
}

func TestLoadCoercesAndDrops(t *testing.T) {
	path := writeCSV(t, animeRows)
	tbl, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tbl.Stats.Rows != 7 {
		t.Fatalf("rows = %d, want 7", tbl.Stats.Rows)
	}
	if tbl.Stats.MissingScore != 2 || tbl.Stats.MissingType != 1 {
		t.Fatalf("stats = %+v", tbl.Stats)
	}
	if tbl.Len() != 4 {
		t.Fatalf("kept = %d, want 4", tbl.Len())
	}
	bebop := tbl.Records[0]
	if bebop.Name != "Cowboy Bebop" || *bebop.Score != 8.78 || *bebop.Episodes != 26 || *bebop.Year != 1998 {
		t.Fatalf("unexpected first record: %+v", bebop)
	}
	if len(bebop.Genres) != 6 || !bebop.HasGenre("Space") {
		t.Fatalf("genres = %#v", bebop.Genres)
	}
	if bebop.Aired != "Apr 3, 1998 to Apr 24, 1999" || !strings.Contains(bebop.GenresRaw, "Sci-Fi") {
		t.Fatalf("source fields altered: %+v", bebop)
	}
	pilot := tbl.Records[3]
	if pilot.Episodes != nil || pilot.Year != nil {
		t.Fatalf("expected missing episodes/year: %+v", pilot)
	}
	if pilot.Genres == nil || len(pilot.Genres) != 0 {
		t.Fatalf("expected empty genre set, got %#v", pilot.Genres)
	}
	if pilot.Studio != UnknownStudio {
		t.Fatalf("studio = %q, want %q", pilot.Studio, UnknownStudio)
	}
	for _, r := range tbl.Records {
		if r.Score == nil || *r.Score < MinScore || *r.Score > MaxScore {
			t.Fatalf("score out of range for %s", r.Name)
		}
	}
}

func TestLoadIsRepeatable(t *testing.T) {
	path := writeCSV(t, animeRows)
	a, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load(path, LoadOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Len() != b.Len() || a.Revision != b.Revision {
		t.Fatalf("loads differ: %d/%d %+v/%+v", a.Len(), b.Len(), a.Revision, b.Revision)
	}
	for i := range a.Records {
		if a.Records[i].Name != b.Records[i].Name || *a.Records[i].Score != *b.Records[i].Score {
			t.Fatalf("record %d differs", i)
		}
	}
}

func TestLoadMissingRequiredColumn(t *testing.T) {
	path := writeCSV(t, []string{"MAL_ID,Name,Genres", "1,x,Action"})
	_, err := Load(path, LoadOptions{})
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("err = %v, want ErrMissingColumn", err)
	}
}

func TestLoadMaxRows(t *testing.T) {
	path := writeCSV(t, animeRows)
	tbl, err := Load(path, LoadOptions{MaxRows: 2})
	if err != nil {
		t.Fatal(err)
	}
	if !tbl.Stats.Truncated || tbl.Stats.Rows != 2 || tbl.Len() != 2 {
		t.Fatalf("stats = %+v len=%d", tbl.Stats, tbl.Len())
	}
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := []Record{{Name: "x", Aired: "2003", GenresRaw: "Drama"}}
	out := Normalize(in)
	if in[0].Year != nil || in[0].Genres != nil {
		t.Fatalf("input mutated: %+v", in[0])
	}
	if out[0].Year == nil || *out[0].Year != 2003 || !out[0].HasGenre("Drama") {
		t.Fatalf("normalize output: %+v", out[0])
	}
}

func TestCacheReusesAndReloads(t *testing.T) {
	path := writeCSV(t, animeRows)
	c := NewCache(LoadOptions{})
	a, err := c.Get(path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Get(path)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("expected cached table to be reused")
	}

	// rewrite with fewer rows and a different mtime
	if err := os.WriteFile(path, []byte(strings.Join(animeRows[:2], "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	d, err := c.Get(path)
	if err != nil {
		t.Fatal(err)
	}
	if d == a || d.Len() != 1 {
		t.Fatalf("expected reload after change, len=%d", d.Len())
	}

	c.Invalidate(path)
	if c.Len() != 0 {
		t.Fatalf("cache not invalidated")
	}
}

func TestCacheConcurrentGetLoadsOnce(t *testing.T) {
	path := writeCSV(t, animeRows)
	c := NewCache(LoadOptions{})
	var loads atomic.Int32
	c.load = func(p string, opt LoadOptions) (*Table, error) {
		loads.Add(1)
		return Load(p, opt)
	}

	const workers = 32
	tables := make([]*Table, workers)
	errs := make([]error, workers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			tables[i], errs[i] = c.Get(path)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := range tables {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if tables[i] != tables[0] {
			t.Fatalf("worker %d got a different table", i)
		}
	}
	if n := loads.Load(); n != 1 {
		t.Fatalf("loaded %d times, want 1", n)
	}
}

func TestFieldLookup(t *testing.T) {
	if f, ok := NumericFieldByName("Plan to Watch"); !ok || f.Name != "plan_to_watch" {
		t.Fatalf("lookup plan to watch: %v %v", f.Name, ok)
	}
	if _, ok := LabelFieldByName("genre"); !ok {
		t.Fatal("genre alias not registered")
	}
	if _, ok := NumericFieldByName("nope"); ok {
		t.Fatal("unexpected field")
	}
	names := NumericFieldNames()
	if len(names) != 11 {
		t.Fatalf("numeric names = %v", names)
	}
}
