package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/AIMotionLab-SZTAKI/aimotion-crazypack-firmware/control"
)

// plotSamples is the number of points drawn per curve.
const plotSamples = 500

// PlotAction renders the flip reference, its pitch rate and thrust as one PNG.
func PlotAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	timescale := cfg.Gains.Timescale
	if c.IsSet(plotFlagTimescale) {
		timescale = c.Float64(plotFlagTimescale)
	}
	if !(timescale > 0) {
		return errors.Errorf("timescale must be positive, got %v", timescale)
	}

	plots, err := flipPlots(timescale)
	if err != nil {
		return err
	}
	output := c.Path(plotFlagOutput)
	if err := savePlots(plots, output); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", output)
	return nil
}

func flipPlots(timescale float64) ([]*plot.Plot, error) {
	q0 := make(plotter.XYs, plotSamples)
	q2 := make(plotter.XYs, plotSamples)
	rate := make(plotter.XYs, plotSamples)
	thrust := make(plotter.XYs, plotSamples)
	for i := 0; i < plotSamples; i++ {
		t := timescale * float64(i) / (plotSamples - 1)
		s := control.FlipAt(t, timescale)
		q0[i] = plotter.XY{X: t, Y: s.Q0}
		q2[i] = plotter.XY{X: t, Y: s.Q2}
		rate[i] = plotter.XY{X: t, Y: s.RateY}
		thrust[i] = plotter.XY{X: t, Y: s.Thrust}
	}

	panels := []struct {
		title, ylabel string
		lines         []interface{}
	}{
		{"Desired attitude", "quaternion", []interface{}{"q0", q0, "q2", q2}},
		{"Desired pitch rate", "rate (rad/s)", []interface{}{"rate y", rate}},
		{"Desired thrust", "thrust (N)", []interface{}{"thrust", thrust}},
	}
	plots := make([]*plot.Plot, 0, len(panels))
	for _, panel := range panels {
		p := plot.New()
		p.Title.Text = panel.title
		p.X.Label.Text = "time (s)"
		p.Y.Label.Text = panel.ylabel
		p.Add(plotter.NewGrid())
		if err := plotutil.AddLines(p, panel.lines...); err != nil {
			return nil, errors.Wrapf(err, "plotting %s", panel.title)
		}
		plots = append(plots, p)
	}
	return plots, nil
}

// savePlots stacks `plots` vertically in one PNG.
func savePlots(plots []*plot.Plot, filename string) (err error) {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return errors.Wrap(err, "cannot create directory")
	}
	img := vgimg.NewWith(vgimg.UseWH(8*vg.Inch, vg.Length(3*len(plots))*vg.Inch), vgimg.UseDPI(150))
	dc := draw.New(img)

	grid := make([][]*plot.Plot, len(plots))
	for i, p := range plots {
		grid[i] = []*plot.Plot{p}
	}
	tiles := draw.Tiles{Rows: len(plots), Cols: 1, PadY: vg.Millimeter * 4}
	canvases := plot.Align(grid, tiles, dc)
	for i, p := range plots {
		p.Draw(canvases[i][0])
	}

	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "cannot create png")
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		return errors.Wrap(err, "cannot write png")
	}
	return nil
}
