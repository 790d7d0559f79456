package recorder

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"cityflow/internal/features"
	"cityflow/internal/trainset"
)

// CSV writes train.csv and test.csv under Dir/<run id>/.
type CSV struct {
	Dir string
}

func (c CSV) Record(_ context.Context, run Run, set trainset.TrainingSet) error {
	dir := filepath.Join(c.Dir, run.ID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	header := append(append([]string(nil), set.FeatureNames...), features.ColIsAccident)
	if err := writePartition(filepath.Join(dir, "train.csv"), header, set.XTrain, set.YTrain); err != nil {
		return err
	}
	return writePartition(filepath.Join(dir, "test.csv"), header, set.XTest, set.YTest)
}

func writePartition(path string, header []string, x [][]any, y []int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	record := make([]string, len(header))
	for i, row := range x {
		for j, v := range row {
			record[j] = Cell(v)
		}
		record[len(record)-1] = strconv.Itoa(y[i])
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}

// Cell formats a frame value for CSV. Nil becomes an empty field.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
