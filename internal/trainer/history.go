package trainer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteHistory writes one CSV row per epoch.
func WriteHistory(w io.Writer, history []EpochStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"epoch", "steps", "train_loss", "valid_loss", "valid_acc", "seconds"}); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, s := range history {
		validLoss, validAcc := "", ""
		if s.HasValid {
			validLoss, validAcc = f(s.ValidLoss), f(s.ValidAcc)
		}
		row := []string{
			strconv.Itoa(s.Epoch),
			strconv.Itoa(s.Steps),
			f(s.TrainLoss),
			validLoss,
			validAcc,
			f(s.Duration.Seconds()),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("history: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	return nil
}
