// Package report renders a run summary as Markdown.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"cpcscraper/pkg/models"

	"github.com/nao1215/markdown"
)

// WriteMarkdown renders s to w.
func WriteMarkdown(w io.Writer, s *models.Summary) error {
	md := markdown.NewMarkdown(w)

	writeHeader(md, s)
	writeCounts(md, s)
	writeProducts(md, s)
	writeFailures(md, s)
	writeProblems(md, s)

	md.HorizontalRule()
	md.PlainTextf("*Generated by cpcscraper on %s*", s.Finished.Format(time.RFC3339))
	return md.Build()
}

// WriteFile renders s to path, creating its directory.
func WriteFile(path string, s *models.Summary) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if err := WriteMarkdown(f, s); err != nil {
		f.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return f.Close()
}

func writeHeader(md *markdown.Markdown, s *models.Summary) {
	md.H1("cpcscraper run")
	md.PlainText("")

	rows := [][]string{
		{"Mode", s.Mode},
		{"Output", "`" + s.OutputDir + "`"},
		{"Started", s.Started.Format("2006-01-02 15:04:05 MST")},
		{"Duration", s.Duration().Round(time.Millisecond).String()},
		{"Candidates", strconv.Itoa(s.Candidates)},
	}
	if s.StartURL != "" {
		rows = append(rows, []string{"Start URL", s.StartURL})
	}
	if len(s.Categories) > 0 {
		rows = append(rows, []string{"Categories", fmt.Sprint(s.Categories)})
	}
	if s.Resumed > 0 {
		rows = append(rows, []string{"Resumed products", strconv.Itoa(s.Resumed)})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")
}

func writeCounts(md *markdown.Markdown, s *models.Summary) {
	md.H2("Outcomes")
	md.PlainText("")

	rows := make([][]string, 0, len(models.Statuses)+1)
	for _, status := range models.Statuses {
		rows = append(rows, []string{string(status), strconv.Itoa(s.Counts[status])})
	}
	rows = append(rows, []string{"**total**", "**" + strconv.Itoa(s.Total()) + "**"})
	md.Table(markdown.TableSet{Header: []string{"Status", "Count"}, Rows: rows})
	md.PlainText("")

	switch failed := s.FailedCount(); {
	case s.Total() == 0:
		md.Note("No images were downloaded.")
	case failed > 0:
		md.Warningf("%d of %d downloads failed.", failed, s.Total())
	default:
		md.Tip("Every image was saved or already present.")
	}
	md.PlainText("")
}

func writeProducts(md *markdown.Markdown, s *models.Summary) {
	if len(s.Products) == 0 {
		return
	}
	md.H2("Products")
	md.PlainText("")

	rows := make([][]string, len(s.Products))
	for i, p := range s.Products {
		rows[i] = []string{
			orDash(p.Category),
			p.Product,
			strconv.Itoa(len(p.Images)),
			strconv.Itoa(p.Skipped),
			strconv.Itoa(p.Failed),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Product", "Saved", "Skipped", "Failed"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeFailures(md *markdown.Markdown, s *models.Summary) {
	if len(s.Failures) == 0 {
		return
	}
	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, len(s.Failures))
	for i, f := range s.Failures {
		rows[i] = []string{string(f.Status), orDash(f.Product), f.URL, truncate(orDash(f.Reason), 80)}
	}
	md.Table(markdown.TableSet{Header: []string{"Status", "Product", "URL", "Reason"}, Rows: rows})
	md.PlainText("")
}

func writeProblems(md *markdown.Markdown, s *models.Summary) {
	if len(s.Problems) == 0 {
		return
	}
	md.H2("Skipped pages")
	md.PlainText("")
	md.BulletList(s.Problems...)
	md.PlainText("")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
