package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/san-kum/hoversim/internal/dynamo"
)

var csvHeader = []string{
	"step", "time", "dt",
	"x", "y", "vx", "vy",
	"obs_x", "obs_y",
	"action_y", "force_y",
	"setpoint", "output", "done",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteCSV writes one row per sample with a header.
func WriteCSV(w io.Writer, samples []dynamo.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.Itoa(s.Step), formatFloat(s.Time), formatFloat(s.Dt),
			formatFloat(s.Position.X()), formatFloat(s.Position.Y()),
			formatFloat(s.Velocity.X()), formatFloat(s.Velocity.Y()),
			formatFloat(s.Observation.X()), formatFloat(s.Observation.Y()),
			formatFloat(s.Action.Y()), formatFloat(s.Force.Y()),
			formatFloat(s.Setpoint), formatFloat(s.Output),
			strconv.FormatBool(s.Done),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses what WriteCSV produced. Columns are matched by header name,
// so files with extra or reordered columns still load.
func ReadCSV(r io.Reader) ([]dynamo.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return []dynamo.Sample{}, nil
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[name] = i
	}
	for _, name := range csvHeader {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	samples := make([]dynamo.Sample, 0, len(records)-1)
	for line, rec := range records[1:] {
		var parseErr error
		num := func(name string) float64 {
			i := col[name]
			if i >= len(rec) {
				parseErr = fmt.Errorf("line %d: short record", line+2)
				return 0
			}
			v, err := strconv.ParseFloat(rec[i], 64)
			if err != nil && parseErr == nil {
				parseErr = fmt.Errorf("line %d, %s: %w", line+2, name, err)
			}
			return v
		}

		s := dynamo.Sample{
			Step:        int(num("step")),
			Time:        num("time"),
			Dt:          num("dt"),
			Position:    mgl64.Vec2{num("x"), num("y")},
			Velocity:    mgl64.Vec2{num("vx"), num("vy")},
			Observation: mgl64.Vec2{num("obs_x"), num("obs_y")},
			Action:      mgl64.Vec2{0, num("action_y")},
			Force:       mgl64.Vec2{0, num("force_y")},
			Setpoint:    num("setpoint"),
			Output:      num("output"),
		}
		if parseErr != nil {
			return nil, parseErr
		}
		if i := col["done"]; i < len(rec) {
			s.Done, _ = strconv.ParseBool(rec[i])
		}
		samples = append(samples, s)
	}
	return samples, nil
}

type exportSample struct {
	Step     int        `json:"step"`
	Time     float64    `json:"t"`
	Position [2]float64 `json:"position"`
	Velocity [2]float64 `json:"velocity"`
	Observed [2]float64 `json:"observed"`
	Thrust   float64    `json:"thrust"`
	Force    [2]float64 `json:"force"`
	Setpoint float64    `json:"setpoint"`
	Output   float64    `json:"output"`
	Done     bool       `json:"done,omitempty"`
}

type ExportData struct {
	Run     RunMetadata    `json:"run"`
	Samples []exportSample `json:"samples"`
}

// ExportJSON writes a run and its samples as one indented JSON document.
func ExportJSON(w io.Writer, meta RunMetadata, samples []dynamo.Sample) error {
	data := ExportData{
		Run:     meta,
		Samples: make([]exportSample, len(samples)),
	}
	for i, s := range samples {
		data.Samples[i] = exportSample{
			Step:     s.Step,
			Time:     s.Time,
			Position: s.Position,
			Velocity: s.Velocity,
			Observed: s.Observation,
			Thrust:   s.Action.Y(),
			Force:    s.Force,
			Setpoint: s.Setpoint,
			Output:   s.Output,
			Done:     s.Done,
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
