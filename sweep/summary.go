package sweep

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/montanaflynn/stats"
	"go.dedis.ch/onet/v3/log"
)

// writeSummary writes one row per run of a dataset and logs the spread of the test accuracies
func writeSummary(filename string, reports []RunReport) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"optimizer", "epochs", "batch_size", "schedule", "test_loss", "test_acc", "best_val_acc"}); err != nil {
		return err
	}
	accuracies := make([]float64, 0, len(reports))
	for _, r := range reports {
		c, score := r.Combination, r.Result.Score
		row := []string{
			c.Optimizer,
			strconv.Itoa(c.Epochs),
			strconv.Itoa(c.BatchSize),
			c.Schedule,
			strconv.FormatFloat(score.Loss, 'g', -1, 64),
			strconv.FormatFloat(score.Accuracy, 'g', -1, 64),
			strconv.FormatFloat(r.Result.BestValAcc, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
		accuracies = append(accuracies, score.Accuracy)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	if len(accuracies) > 0 {
		mean, _ := stats.Mean(accuracies)
		std, _ := stats.StandardDeviation(accuracies)
		best, _ := stats.Max(accuracies)
		log.Lvlf1("%d runs: test accuracy mean %.4f, std %.4f, best %.4f", len(accuracies), mean, std, best)
	}
	return f.Close()
}
