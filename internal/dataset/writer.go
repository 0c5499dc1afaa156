package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KaramelBytes/edaloom-cli/internal/utils"
)

// WriteCSV writes the dataset with a header row and comma separator,
// replacing any existing file. Parent directories are created as needed.
func WriteCSV(d *Dataset, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(d.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(d.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func ensureParent(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
