package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

var (
	stageColors = map[reconcile.Stage]lipgloss.Color{
		reconcile.StageDocument:    lipgloss.Color("#1E88E5"),
		reconcile.StageMatching:    lipgloss.Color("#F9A825"),
		reconcile.StageDiscrepancy: lipgloss.Color("#E53935"),
		reconcile.StageResolution:  lipgloss.Color("#43A047"),
		reconcile.StageReview:      lipgloss.Color("#8E24AA"),
	}
	defaultStageColor = lipgloss.Color("#607D8B")

	stageLabels = map[reconcile.Stage]string{
		reconcile.StageDocument:    "DocumentAgent",
		reconcile.StageMatching:    "MatchingAgent",
		reconcile.StageDiscrepancy: "DiscrepancyAgent",
		reconcile.StageResolution:  "ResolutionAgent",
		reconcile.StageReview:      "ReviewAgent",
	}

	decisionColors = map[reconcile.Decision]lipgloss.Color{
		reconcile.DecisionAutoApprove:          lipgloss.Color("#43A047"),
		reconcile.DecisionRequestClarification: lipgloss.Color("#F9A825"),
		reconcile.DecisionEscalateToHuman:      lipgloss.Color("#E53935"),
	}
)

// Renderer prints records for a terminal
type Renderer struct {
	w     io.Writer
	plain bool
}

// NewRenderer creates a renderer. plain disables colors.
func NewRenderer(w io.Writer, plain bool) *Renderer {
	return &Renderer{w: w, plain: plain}
}

// StageLabel is the bracketed tag shown before a reasoning message
func StageLabel(stage reconcile.Stage) string {
	if label, ok := stageLabels[stage]; ok {
		return "[" + label + "]"
	}
	return "[" + string(stage) + "]"
}

func (r *Renderer) style(color lipgloss.Color) lipgloss.Style {
	if r.plain {
		return lipgloss.NewStyle()
	}
	return lipgloss.NewStyle().Foreground(color)
}

// Reasoning renders one trail entry
func (r *Renderer) Reasoning(entry reconcile.ReasoningEntry) string {
	color, ok := stageColors[entry.Stage]
	if !ok {
		color = defaultStageColor
	}
	return r.style(color).Render(StageLabel(entry.Stage)) + " " + entry.Message
}

// Record prints the decision, trail, issues and explanation for rec
func (r *Renderer) Record(rec *Record) {
	divider := strings.Repeat("=", 80)
	heading := r.style(decisionColors[rec.Decision]).Bold(!r.plain).Render(string(rec.Decision))

	fmt.Fprintln(r.w, divider)
	fmt.Fprintf(r.w, "Invoice:  %s\n", rec.FileName)
	fmt.Fprintf(r.w, "Decision: %s\n", heading)
	if rec.MatchedPO != nil {
		fmt.Fprintf(r.w, "Matched:  %s (confidence=%.2f)\n", rec.MatchedPO.PONumber, rec.MatchConfidence)
	} else {
		fmt.Fprintf(r.w, "Matched:  none (confidence=%.2f)\n", rec.MatchConfidence)
	}

	fmt.Fprintln(r.w, "Reasoning:")
	for _, entry := range rec.Reasoning {
		fmt.Fprintln(r.w, "  "+r.Reasoning(entry))
	}

	if len(rec.Issues) > 0 {
		fmt.Fprintln(r.w, "Issues:")
		for _, issue := range rec.Issues {
			data, _ := json.Marshal(issue)
			fmt.Fprintf(r.w, "  %s\n", data)
		}
	}

	if rec.HumanExplanation != nil && *rec.HumanExplanation != "" {
		fmt.Fprintln(r.w, "Explanation:")
		fmt.Fprintln(r.w, "  "+strings.ReplaceAll(strings.TrimSpace(*rec.HumanExplanation), "\n", "\n  "))
	}
}

// Summary prints batch totals
func (r *Renderer) Summary(autoApproved, needsHuman int) {
	fmt.Fprintln(r.w, strings.Repeat("=", 80))
	fmt.Fprintf(r.w, "%s %d   %s %d\n",
		r.style(decisionColors[reconcile.DecisionAutoApprove]).Render("Auto approved:"), autoApproved,
		r.style(decisionColors[reconcile.DecisionEscalateToHuman]).Render("Needs human review:"), needsHuman)
}
