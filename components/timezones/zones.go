package timezones

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
)

//go:embed data/iana_timezones.txt
var dataFS embed.FS

// Zones is a sorted list of unique IANA zone names.
type Zones []string

var embedded = sync.OnceValues(func() (Zones, error) {
	f, err := dataFS.Open("data/iana_timezones.txt")
	if err != nil {
		return nil, fmt.Errorf("timezones: open embedded list: %w", err)
	}
	defer func() { _ = f.Close() }()
	return ParseZones(f)
})

// Embedded returns a copy of the zone list shipped with the package.
func Embedded() (Zones, error) {
	zones, err := embedded()
	if err != nil {
		return nil, err
	}
	return slices.Clone(zones), nil
}

// ParseZones reads one zone per line. Blank lines and # comments are
// skipped, and only the first field of a line is kept.
func ParseZones(r io.Reader) (Zones, error) {
	if r == nil {
		return nil, fmt.Errorf("timezones: nil reader")
	}
	var zones Zones
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		zones = append(zones, strings.Fields(line)[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("timezones: read list: %w", err)
	}
	return NewZones(zones...), nil
}

// NewZones sorts names and drops duplicates.
func NewZones(names ...string) Zones {
	zones := slices.Clone(Zones(names))
	slices.Sort(zones)
	return slices.Compact(zones)
}

// Contains reports whether name is in the list.
func (z Zones) Contains(name string) bool {
	_, ok := slices.BinarySearch(z, name)
	return ok
}

// rank orders matches: exact name, name prefix, city prefix, anywhere.
type rank int

const (
	rankExact rank = iota
	rankPrefix
	rankCity
	rankContains
	rankNone
)

// Match returns the zones matching text, case-insensitively, best matches
// first. Underscores in zone names match spaces, so "new york" finds
// America/New_York.
func (z Zones) Match(text string) []string {
	q := normalize(text)
	if q == "" {
		return nil
	}
	type hit struct {
		name string
		rank rank
	}
	var hits []hit
	for _, name := range z {
		if r := rankOf(name, q); r != rankNone {
			hits = append(hits, hit{name: name, rank: r})
		}
	}
	slices.SortStableFunc(hits, func(a, b hit) int {
		return int(a.rank) - int(b.rank)
	})
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}

func rankOf(name, q string) rank {
	n := normalize(name)
	switch {
	case n == q:
		return rankExact
	case strings.HasPrefix(n, q):
		return rankPrefix
	case strings.HasPrefix(normalize(city(name)), q):
		return rankCity
	case strings.Contains(n, q):
		return rankContains
	}
	return rankNone
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", " "))
}

func city(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Label renders a zone for display: "America/New_York" becomes
// "New York (America)".
func Label(name string) string {
	i := strings.LastIndex(name, "/")
	if i < 0 {
		return strings.ReplaceAll(name, "_", " ")
	}
	return fmt.Sprintf("%s (%s)", strings.ReplaceAll(name[i+1:], "_", " "), strings.ReplaceAll(name[:i], "_", " "))
}
