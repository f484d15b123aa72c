package web

import (
	"embed"
	"html/template"
	"io"

	"versescope/internal/analysis"
	"versescope/internal/pipeline"
	"versescope/internal/textutil"
)

//go:embed templates/index.html
var templateFS embed.FS

type detailOption struct {
	Value    string
	Label    string
	Selected bool
}

type pageData struct {
	Snapshot   pipeline.Snapshot
	Busy       bool
	Status     string
	QueryTitle string
	Details    []detailOption
}

var phaseStatus = map[pipeline.Phase]string{
	pipeline.PhaseLookingUp: "Looking up verse...",
	pipeline.PhaseAnalyzing: "Analyzing...",
}

func parsePage() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/index.html")
}

func renderPage(w io.Writer, page *template.Template, snap pipeline.Snapshot, defaultDetail analysis.DetailLevel) error {
	selected := defaultDetail
	if snap.Detail != "" {
		selected = analysis.DetailLevel(snap.Detail)
	}
	data := pageData{
		Snapshot:   snap,
		Busy:       snap.Phase.Busy(),
		Status:     phaseStatus[snap.Phase],
		QueryTitle: textutil.TitleQuery(snap.Query),
		Details: []detailOption{
			{Value: string(analysis.DetailBrief), Label: "Brief", Selected: selected == analysis.DetailBrief},
			{Value: string(analysis.DetailComprehensive), Label: "Comprehensive", Selected: selected == analysis.DetailComprehensive},
		},
	}
	return page.ExecuteTemplate(w, "index.html", data)
}
