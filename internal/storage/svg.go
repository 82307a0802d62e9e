package storage

import (
	"fmt"
	"strings"

	"github.com/san-kum/hoversim/internal/dynamo"
)

// TrajectorySVG draws one polyline through the (x, y) pairs picked from each
// sample, scaled to fill width x height with a 10 % margin.
func TrajectorySVG(samples []dynamo.Sample, x, y func(dynamo.Sample) float64, width, height int, stroke string) string {
	if len(samples) < 2 {
		return ""
	}

	minX, maxX := x(samples[0]), x(samples[0])
	minY, maxY := y(samples[0]), y(samples[0])
	for _, s := range samples {
		px, py := x(s), y(s)
		minX, maxX = min(minX, px), max(maxX, px)
		minY, maxY = min(minY, py), max(maxY, py)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	rangeX *= 1.2
	rangeY *= 1.2

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, stroke)

	for i, s := range samples {
		px := (x(s) - minX) / rangeX * float64(width)
		py := float64(height) - (y(s)-minY)/rangeY*float64(height)
		if i > 0 {
			sb.WriteString(" L")
		}
		fmt.Fprintf(&sb, "%.1f,%.1f", px, py)
	}

	sb.WriteString("\"/>\n</svg>\n")
	return sb.String()
}

// TimeAxis and Height select the usual height-over-time trace.
func TimeAxis(s dynamo.Sample) float64 { return s.Time }
func Height(s dynamo.Sample) float64   { return s.Position.Y() }
