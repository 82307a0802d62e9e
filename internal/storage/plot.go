package storage

import (
	"bufio"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/san-kum/hoversim/internal/dynamo"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

var (
	heightColor   = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	setpointColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	thrustColor   = color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff}
)

func series(samples []dynamo.Sample, f func(dynamo.Sample) float64) plotter.XYs {
	pts := make(plotter.XYs, len(samples))
	for i, s := range samples {
		pts[i].X = s.Time
		pts[i].Y = f(s)
	}
	return pts
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, c color.Color, dashed bool) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Width = vg.Points(1.5)
	line.LineStyle.Color = c
	if dashed {
		line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	}
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}

// PlotRun renders height, setpoint and vertical thrust against time.
func PlotRun(samples []dynamo.Sample, title string) (*plot.Plot, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "height (m) / thrust (N)"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	if err := addLine(p, "height", series(samples, func(s dynamo.Sample) float64 { return s.Position.Y() }), heightColor, false); err != nil {
		return nil, err
	}
	if err := addLine(p, "setpoint", series(samples, func(s dynamo.Sample) float64 { return s.Setpoint }), setpointColor, true); err != nil {
		return nil, err
	}
	if err := addLine(p, "thrust", series(samples, func(s dynamo.Sample) float64 { return s.Action.Y() }), thrustColor, false); err != nil {
		return nil, err
	}
	return p, nil
}

// SavePNG draws p into a PNG file, creating parent directories.
func SavePNG(p *plot.Plot, widthIn, heightIn float64, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("cannot create directory: %w", err)
	}

	c := vgimg.NewWith(
		vgimg.UseWH(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch),
		vgimg.UseDPI(150),
	)
	p.Draw(draw.New(c))

	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}
