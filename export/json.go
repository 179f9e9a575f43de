package export

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hb9tf/cellscan/scan"
)

// JSON writes the summary to summary.json in the run directory.
type JSON struct{}

func (j *JSON) Name() string { return SummaryJSON }

func (j *JSON) Export(ctx context.Context, s *scan.Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode summary: %s", err)
	}
	return writeFile(filepath.Join(s.Dir, SummaryJSON), append(data, '\n'))
}

// YAML writes the summary to summary.yaml in the run directory.
type YAML struct{}

func (y *YAML) Name() string { return SummaryYAML }

func (y *YAML) Export(ctx context.Context, s *scan.Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("unable to encode summary: %s", err)
	}
	return writeFile(filepath.Join(s.Dir, SummaryYAML), data)
}
