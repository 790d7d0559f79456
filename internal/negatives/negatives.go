// Package negatives synthesizes non-accident rows by perturbing one
// feature of real accidents.
package negatives

import (
	"log"
	"math/rand/v2"
	"sort"

	"cityflow/internal/features"
)

// Column is a feature the generator may perturb.
type Column int

const (
	Hour Column = iota
	Day
	Street
)

func (c Column) String() string {
	switch c {
	case Hour:
		return features.ColHour
	case Day:
		return features.ColDay
	case Street:
		return features.ColStreetName
	}
	return "unknown"
}

type Generator struct {
	rng    *rand.Rand
	logger *log.Logger
}

// NewGenerator returns a generator drawing from rng. The same seed and
// input always yield the same output.
func NewGenerator(rng *rand.Rand, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{rng: rng, logger: logger}
}

// Generate picks the column to perturb once for the call and then runs
// GenerateColumn.
func (g *Generator) Generate(positives []features.Vector, iterations int) []features.Vector {
	col := Column(g.rng.IntN(3))
	return g.GenerateColumn(positives, iterations, col)
}

// GenerateColumn makes iterations passes over positives. Each pass replaces
// col in every row with a value drawn uniformly from the distinct values of
// col. A candidate whose (day, hour, street) triple matches a positive or a
// negative already accepted in this call is discarded.
func (g *Generator) GenerateColumn(positives []features.Vector, iterations int, col Column) []features.Vector {
	if len(positives) == 0 || iterations <= 0 {
		return nil
	}

	taken := make(map[features.Key]struct{}, len(positives))
	for _, p := range positives {
		taken[p.Key()] = struct{}{}
	}

	hours, days, streets := distinct(positives)
	out := make([]features.Vector, 0, len(positives)*iterations)
	rejected := 0
	for it := 0; it < iterations; it++ {
		for _, p := range positives {
			c := p
			switch col {
			case Hour:
				c.Hour = hours[g.rng.IntN(len(hours))]
			case Day:
				c.Day = days[g.rng.IntN(len(days))]
			case Street:
				c.StreetName = streets[g.rng.IntN(len(streets))]
			}
			k := c.Key()
			if _, ok := taken[k]; ok {
				rejected++
				continue
			}
			taken[k] = struct{}{}
			c.EventNo = ""
			c.IsAccident = 0
			out = append(out, c)
		}
	}

	g.logger.Printf("negatives: column=%s iterations=%d kept=%d rejected=%d", col, iterations, len(out), rejected)
	return out
}

func distinct(vs []features.Vector) (hours, days []int, streets []string) {
	hs, ds, ss := map[int]bool{}, map[int]bool{}, map[string]bool{}
	for _, v := range vs {
		if !hs[v.Hour] {
			hs[v.Hour] = true
			hours = append(hours, v.Hour)
		}
		if !ds[v.Day] {
			ds[v.Day] = true
			days = append(days, v.Day)
		}
		if !ss[v.StreetName] {
			ss[v.StreetName] = true
			streets = append(streets, v.StreetName)
		}
	}
	sort.Ints(hours)
	sort.Ints(days)
	sort.Strings(streets)
	return hours, days, streets
}
