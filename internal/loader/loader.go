package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/insilicare/postmarket/internal/model"
)

// Record is one successfully decoded patient file. The file name is the
// record identifier used throughout the reports.
type Record struct {
	Name    string
	Patient *model.Patient
}

// Failure flags a file excluded from the batch, with the reason recorded so
// the omission is visible in the final report.
type Failure struct {
	Name   string `json:"file"`
	Reason string `json:"reason"`
}

// LoadDir decodes every *.json file in dir. Malformed files are skipped and
// flagged; only an unreadable directory aborts the batch.
func LoadDir(dir string) ([]Record, []Failure, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sample directory: %w", err)
	}

	var records []Record
	var failures []Failure

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		b, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.Warn().Str("file", entry.Name()).Err(err).Msg("skipping unreadable sample")
			failures = append(failures, Failure{Name: entry.Name(), Reason: err.Error()})
			continue
		}

		patient, err := model.Decode(b)
		if err != nil {
			log.Warn().Str("file", entry.Name()).Err(err).Msg("skipping malformed sample")
			failures = append(failures, Failure{Name: entry.Name(), Reason: err.Error()})
			continue
		}

		records = append(records, Record{Name: entry.Name(), Patient: patient})
	}

	log.Info().Str("dir", dir).Int("loaded", len(records)).Int("skipped", len(failures)).Msg("samples loaded")
	return records, failures, nil
}
