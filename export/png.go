package export

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"path/filepath"

	"github.com/hb9tf/cellscan/chart"
	"github.com/hb9tf/cellscan/scan"
)

// PNG renders the coverage chart of a run to summary.png.
type PNG struct {
	Options chart.Options
}

func (p *PNG) Name() string { return ChartPNG }

func (p *PNG) Export(ctx context.Context, s *scan.Summary) error {
	img, err := chart.Render(s, p.Options)
	if err != nil {
		return fmt.Errorf("unable to render chart: %s", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("unable to encode chart: %s", err)
	}
	return writeFile(filepath.Join(s.Dir, ChartPNG), buf.Bytes())
}
