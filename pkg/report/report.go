// Package report renders model summaries, predictions and simulations as
// plain text for the command line.
package report

import (
	"embed"
	"fmt"
	"io"
	"math"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/ethpandaops/laptime/pkg/predictor"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Info is the data rendered by Renderer.Info
type Info struct {
	ModelID     string
	Metrics     predictor.Metrics
	Drivers     []string
	Events      []string
	Compounds   []string
	Importances []predictor.Importance
	// MaxImportance scales the bars, usually the top score of all features
	MaxImportance float64
}

// Training is the data rendered by Renderer.Training
type Training struct {
	Metrics     predictor.Metrics
	Importances []predictor.Importance
}

// Renderer executes the embedded report templates
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses the embedded templates
func NewRenderer() (*Renderer, error) {
	funcMap := sprig.TxtFuncMap()
	funcMap["laptime"] = FormatLapTime
	funcMap["bar"] = Bar

	tmpl, err := template.New("report").Funcs(funcMap).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse report templates: %w", err)
	}

	return &Renderer{templates: tmpl}, nil
}

func (r *Renderer) execute(w io.Writer, name string, data interface{}) error {
	if err := r.templates.ExecuteTemplate(w, name, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", name, err)
	}

	return nil
}

// Info renders the model summary
func (r *Renderer) Info(w io.Writer, info *Info) error {
	return r.execute(w, "info.tmpl", info)
}

// Training renders the metrics printed after a fit
func (r *Renderer) Training(w io.Writer, t *Training) error {
	return r.execute(w, "training.tmpl", t)
}

// Predictions renders one line per predicted lap
func (r *Renderer) Predictions(w io.Writer, preds []predictor.Prediction) error {
	return r.execute(w, "predictions.tmpl", preds)
}

// Simulation renders a single simulated stint with its warnings
func (r *Renderer) Simulation(w io.Writer, sim *predictor.Simulation) error {
	return r.execute(w, "simulation.tmpl", sim)
}

// Demo renders a batch of simulated stints
func (r *Renderer) Demo(w io.Writer, sims []*predictor.Simulation) error {
	return r.execute(w, "demo.tmpl", sims)
}

// FormatLapTime formats seconds as m:ss.mmm, e.g. 89.743 as 1:29.743
func FormatLapTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "-"
	}

	m := math.Floor(seconds / 60)
	s := seconds - m*60

	// rounding can carry the seconds up to a full minute
	if math.Round(s*1000) >= 60000 {
		m++
		s = 0
	}

	return fmt.Sprintf("%d:%06.3f", int(m), s)
}

// Bar draws score as a bar of up to width blocks relative to top
func Bar(score, top float64, width int) string {
	if top <= 0 || score <= 0 || math.IsNaN(score) {
		return ""
	}

	n := int(score / top * float64(width))
	if n > width {
		n = width
	}

	return strings.Repeat("█", n)
}
