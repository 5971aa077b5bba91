package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-ap-reconciler/internal/output"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

const catalogJSON = `{"purchase_orders": [
	{"po_number": "PO-1001", "line_items": [{"description": "Widget A", "quantity": 10, "unit_price": 5.0, "total": 50}]}
]}`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("RECONCILER_CONFIG", "")
	t.Setenv("EXPLANATION_ENABLED", "false")
	t.Setenv("DB_ENABLED", "false")
	t.Setenv("NATS_ENABLED", "false")
	t.Setenv("EXTRACTION_GRPC_URL", "")

	var out, errOut bytes.Buffer
	root := NewRoot()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRunCmd(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "purchase_orders.json")
	invoices := filepath.Join(dir, "invoices")
	outDir := filepath.Join(dir, "outputs")
	writeFile(t, catalog, catalogJSON)
	writeFile(t, filepath.Join(invoices, "clean.json"),
		`{"invoice_no": "INV-1", "po_number": "PO-1001", "items": [{"description": "Widget A", "quantity": 10, "unit_price": 5.0}]}`)
	writeFile(t, filepath.Join(invoices, "pricey.json"),
		`{"invoice_no": "INV-2", "po_number": "PO-1001", "items": [{"description": "Widget A", "quantity": 10, "unit_price": 6.0}]}`)
	writeFile(t, filepath.Join(invoices, "scan.pdf"), "%PDF-1.4")

	out, err := execute(t, "run", "--catalog", catalog, "--invoices", invoices, "--out", outDir, "--concurrency", "2", "--plain")
	require.NoError(t, err)

	assert.Contains(t, out, "Invoice:  clean.json")
	assert.Contains(t, out, "Invoice:  scan.pdf")
	assert.Contains(t, out, "Auto approved: 1")
	assert.Contains(t, out, "Needs human review: 2")

	clean := readOutput(t, outDir, "clean")
	assert.Equal(t, reconcile.DecisionAutoApprove, clean.Decision)

	pricey := readOutput(t, outDir, "pricey")
	assert.Equal(t, reconcile.DecisionEscalateToHuman, pricey.Decision)

	scan := readOutput(t, outDir, "scan")
	assert.Equal(t, reconcile.FallbackExtractionConfidence, scan.ExtractionConfidence)
	assert.Contains(t, out, "Saved:    "+filepath.Join(outDir, "scan_"+scan.RunID+".json"))
}

// readOutput loads the single record written for the document named stem
func readOutput(t *testing.T, dir, stem string) *output.Record {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, stem+"_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	rec, err := output.ReadFile(matches[0])
	require.NoError(t, err)
	return rec
}

func TestRunCmd_SameStemDifferentExtension(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "purchase_orders.json")
	invoices := filepath.Join(dir, "invoices")
	outDir := filepath.Join(dir, "outputs")
	writeFile(t, catalog, catalogJSON)
	writeFile(t, filepath.Join(invoices, "inv.json"),
		`{"po_number": "PO-1001", "items": [{"description": "Widget A", "quantity": 10, "unit_price": 5.0}]}`)
	writeFile(t, filepath.Join(invoices, "inv.pdf"), "%PDF-1.4")

	_, err := execute(t, "run", "--catalog", catalog, "--invoices", invoices, "--out", outDir, "--plain")
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(outDir, "inv_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 2)

	byName := map[string]reconcile.Decision{}
	for _, path := range matches {
		rec, err := output.ReadFile(path)
		require.NoError(t, err)
		byName[rec.FileName] = rec.Decision
	}
	assert.Equal(t, map[string]reconcile.Decision{
		"inv.json": reconcile.DecisionAutoApprove,
		"inv.pdf":  reconcile.DecisionEscalateToHuman,
	}, byName)
}

func TestRunCmd_EmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	catalog := filepath.Join(dir, "purchase_orders.json")
	writeFile(t, catalog, catalogJSON)

	out, err := execute(t, "run", "--catalog", catalog, "--invoices", filepath.Join(dir, "none"), "--out", dir)
	assert.Error(t, err)
	assert.Empty(t, out)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "empty"), 0o755))
	out, err = execute(t, "run", "--catalog", catalog, "--invoices", filepath.Join(dir, "empty"), "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No invoices found")
}

func TestRunCmd_BadCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "invoices", "a.json"), `{"po_number": "PO-1", "items": []}`)

	_, err := execute(t, "run", "--catalog", filepath.Join(dir, "missing.json"), "--invoices", filepath.Join(dir, "invoices"), "--out", dir)
	assert.Error(t, err)
}

func TestExplainCmd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.json")
	explanation := "Price differs."
	rec := &output.Record{
		RunID:            "run-1",
		FileName:         "inv.pdf",
		Decision:         reconcile.DecisionEscalateToHuman,
		HumanExplanation: &explanation,
		Reasoning:        []reconcile.ReasoningEntry{{Stage: reconcile.StageReview, Message: "Reviewer confirms escalation due to price mismatch."}},
	}
	require.NoError(t, output.WriteFile(path, rec))

	out, err := execute(t, "explain", path, "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "[ReviewAgent] Reviewer confirms escalation")
	assert.Contains(t, out, "Price differs.")

	rec.HumanExplanation = nil
	require.NoError(t, output.WriteFile(path, rec))
	out, err = execute(t, "explain", path, "--plain")
	require.NoError(t, err)
	assert.Contains(t, out, "Explanation service disabled")

	_, err = execute(t, "explain")
	assert.Error(t, err)
}
