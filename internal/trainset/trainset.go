// Package trainset labels, aligns and splits feature vectors into a
// model-ready training set.
package trainset

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand/v2"

	"cityflow/internal/features"
)

var (
	ErrInvalidFraction = errors.New("test fraction must be in (0, 1)")
	ErrNoRows          = errors.New("no rows to assemble")
)

// Columns is the output column order. The label is last.
var Columns = []string{
	features.ColDivision,
	features.ColWeatherTemp,
	features.ColWeatherRain3h,
	features.ColWeatherVisibility,
	features.ColWeatherWindSpeed,
	features.ColSunriseHour,
	features.ColMonth,
	features.ColHour,
	features.ColDayOfWeek,
	features.ColDay,
	features.ColRoadCurve,
	features.ColRoadLength,
	features.ColRoadVolume,
	features.ColSignalsNear,
	features.ColRoadSpeed,
	features.ColPopulationDensity,
	features.ColMedianAge,
	features.ColIsAccident,
}

// Frame is the labeled table restricted to Columns. A nil cell is a value
// the row did not have. Missing lists columns no row had.
type Frame struct {
	Columns []string
	Rows    [][]any
	Missing []string
}

// TrainingSet is a Frame split into train and test partitions.
type TrainingSet struct {
	FeatureNames []string
	XTrain       [][]any
	YTrain       []int
	XTest        [][]any
	YTest        []int
}

type Assembler struct {
	logger *log.Logger
}

func NewAssembler(logger *log.Logger) *Assembler {
	if logger == nil {
		logger = log.Default()
	}
	return &Assembler{logger: logger}
}

// Assemble labels positives 1 and negatives 0, concatenates them and
// projects every row onto Columns.
func (a *Assembler) Assemble(positives, negatives []features.Vector) (Frame, error) {
	if len(positives)+len(negatives) == 0 {
		return Frame{}, ErrNoRows
	}

	f := Frame{
		Columns: append([]string(nil), Columns...),
		Rows:    make([][]any, 0, len(positives)+len(negatives)),
	}
	seen := make([]bool, len(Columns))
	add := func(vs []features.Vector, label int) {
		for _, v := range vs {
			v.IsAccident = label
			vals := v.Values()
			row := make([]any, len(Columns))
			for i, col := range Columns {
				if x, ok := vals[col]; ok {
					row[i] = x
					seen[i] = true
				}
			}
			f.Rows = append(f.Rows, row)
		}
	}
	add(positives, 1)
	add(negatives, 0)

	for i, ok := range seen {
		if !ok {
			f.Missing = append(f.Missing, Columns[i])
		}
	}
	if len(f.Missing) > 0 {
		a.logger.Printf("trainset: warning: columns absent from every row, filled with nulls: %v", f.Missing)
	}
	return f, nil
}

// Split shuffles the frame with a PCG source seeded by seed and holds out
// ceil(testFraction * rows) rows for testing.
func Split(f Frame, testFraction float64, seed uint64) (TrainingSet, error) {
	if !(testFraction > 0 && testFraction < 1) {
		return TrainingSet{}, fmt.Errorf("%w: got %v", ErrInvalidFraction, testFraction)
	}
	label := len(f.Columns) - 1
	if label < 0 {
		return TrainingSet{}, ErrNoRows
	}

	n := len(f.Rows)
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(n)
	testN := int(math.Ceil(testFraction * float64(n)))

	ts := TrainingSet{FeatureNames: append([]string(nil), f.Columns[:label]...)}
	for i, idx := range perm {
		row := f.Rows[idx]
		x := append([]any(nil), row[:label]...)
		y, _ := row[label].(int)
		if i < testN {
			ts.XTest = append(ts.XTest, x)
			ts.YTest = append(ts.YTest, y)
		} else {
			ts.XTrain = append(ts.XTrain, x)
			ts.YTrain = append(ts.YTrain, y)
		}
	}
	return ts, nil
}
