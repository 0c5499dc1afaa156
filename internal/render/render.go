// Package render draws dataset charts as PNG files with gonum/plot.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/KaramelBytes/edaloom-cli/internal/config"
	"github.com/KaramelBytes/edaloom-cli/internal/logging"
	"github.com/KaramelBytes/edaloom-cli/internal/utils"
)

// ErrNotPlottable is returned when a column has nothing a chart can show.
var ErrNotPlottable = errors.New("not plottable")

// Renderer writes charts into Dir.
type Renderer struct {
	Dir string
	// Naming is config.NamingFixed (overwrite on rerun) or
	// config.NamingTimestamp (name_YYYYMMDD_HHMMSS.png).
	Naming string
	Width  vg.Length
	Height vg.Length
	// Now stamps timestamped file names.
	Now func() time.Time
	log *zap.Logger
}

// New returns a renderer with sizes given in inches. Non-positive sizes fall
// back to 10x6.
func New(dir, naming string, widthIn, heightIn float64, log *zap.Logger) *Renderer {
	if widthIn <= 0 {
		widthIn = 10
	}
	if heightIn <= 0 {
		heightIn = 6
	}
	if naming == "" {
		naming = config.NamingTimestamp
	}
	return &Renderer{
		Dir:    dir,
		Naming: naming,
		Width:  vg.Length(widthIn) * vg.Inch,
		Height: vg.Length(heightIn) * vg.Inch,
		Now:    time.Now,
		log:    logging.OrNop(log),
	}
}

// Path returns the output file for a chart name under the naming policy and
// creates the output directory on demand.
func (r *Renderer) Path(name string) (string, error) {
	if err := utils.EnsureDir(r.Dir); err != nil {
		return "", fmt.Errorf("create chart dir: %w", err)
	}
	base := utils.Slug(name)
	if r.Naming == config.NamingTimestamp {
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		base += "_" + now().Format("20060102_150405")
	}
	return filepath.Join(r.Dir, base+".png"), nil
}

func (r *Renderer) save(p *plot.Plot, name string) (string, error) {
	path, err := r.Path(name)
	if err != nil {
		return "", err
	}
	if err := p.Save(r.Width, r.Height, path); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	r.log.Debug("chart written", zap.String("path", path))
	return path, nil
}

// saveCanvas encodes a multi-plot canvas as PNG and writes it atomically.
func (r *Renderer) saveCanvas(c *vgimg.Canvas, name string) (string, error) {
	path, err := r.Path(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
		return "", fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := utils.SafeWriteFile(path, buf.Bytes()); err != nil {
		return "", fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	r.log.Debug("chart written", zap.String("path", path))
	return path, nil
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	return p
}
