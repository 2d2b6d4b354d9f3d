// Package report renders the end-of-run summary as Markdown.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"igleads/pkg/crawler"
	"igleads/pkg/models"
	"igleads/pkg/storage"
)

// DefaultName is the report file written next to the exports
const DefaultName = "report.md"

// maxLeadRows caps the lead table; the exports hold the full list
const maxLeadRows = 50

// Report is everything a run report shows
type Report struct {
	Summary *crawler.Summary
	Leads   []models.ClassifiedLead
	Outputs []string
}

// Write renders r as Markdown to w
func Write(w io.Writer, r Report) error {
	if r.Summary == nil {
		return fmt.Errorf("report has no summary")
	}
	md := markdown.NewMarkdown(w)

	writeHeader(md, r.Summary)
	writeCounters(md, r.Summary)
	writeCategories(md, r.Summary)
	writeRegions(md, r.Leads)
	writeLeads(md, r.Leads)
	writeOutputs(md, r.Outputs)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by igleads on %s*", time.Now().UTC().Format(time.RFC3339))

	return md.Build()
}

// WriteFile renders r into the storage directory and returns the file path
func WriteFile(store *storage.Manager, name string, r Report) (string, error) {
	if name == "" {
		name = DefaultName
	}
	if err := store.WriteAtomic(name, func(w io.Writer) error {
		return Write(w, r)
	}); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return store.Path(name), nil
}

func writeHeader(md *markdown.Markdown, s *crawler.Summary) {
	md.H1("Lead Discovery Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + s.RunID + "`"},
			{"Seeds", strconv.Itoa(len(s.Seeds))},
			{"Started", formatTime(s.StartedAt)},
			{"Finished", formatTime(s.FinishedAt)},
			{"Duration", s.Duration().Round(time.Second).String()},
			{"Stopped because", stopText(s.StopReason)},
		},
	})
	md.PlainText("")
}

func writeCounters(md *markdown.Markdown, s *crawler.Summary) {
	md.H2("Traversal")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Profiles visited", strconv.Itoa(s.Visited)},
			{"Leads emitted", strconv.Itoa(s.Emitted)},
			{"Irrelevant profiles", strconv.Itoa(s.Irrelevant)},
			{"Deepest level", strconv.Itoa(s.MaxDepthReached)},
			{"Fetch failures", strconv.Itoa(s.FetchFailures)},
			{"Expand failures", strconv.Itoa(s.ExpandFailures)},
			{"Sink failures", strconv.Itoa(s.SinkFailures)},
		},
	})
	md.PlainText("")

	failures := s.FetchFailures + s.ExpandFailures + s.SinkFailures
	switch {
	case s.SinkFailures > 0:
		md.Warningf("%d lead(s) could not be written to every sink. Check the log for the affected handles.", s.SinkFailures)
	case failures > 0:
		md.Note(fmt.Sprintf("%d fetch or expand call(s) failed and were skipped.", failures))
	case s.StopReason == crawler.StopCancelled:
		md.Importantf("The run was interrupted. Resume it with %s.", "`igleads crawl --resume`")
	default:
		md.Tip("The run finished without failures.")
	}
	md.PlainText("")
}

func writeCategories(md *markdown.Markdown, s *crawler.Summary) {
	md.H2("Categories")
	md.PlainText("")
	if s.Emitted == 0 {
		md.PlainText("No leads were emitted.")
		md.PlainText("")
		return
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Leads by category"),
		piechart.WithShowData(true),
	)
	var rows [][]string
	for _, c := range models.Categories {
		n := s.Categories[c]
		if n == 0 {
			continue
		}
		rows = append(rows, []string{string(c), strconv.Itoa(n), percent(n, s.Emitted)})
		chart.LabelAndIntValue(string(c), uint64(n))
	}

	md.Table(markdown.TableSet{
		Header: []string{"Category", "Leads", "Share"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func writeRegions(md *markdown.Markdown, leads []models.ClassifiedLead) {
	if len(leads) == 0 {
		return
	}
	counts := make(map[string]int)
	for _, l := range leads {
		region := l.Region
		if region == "" {
			region = "Unknown"
		}
		counts[region]++
	}
	regions := make([]string, 0, len(counts))
	for r := range counts {
		regions = append(regions, r)
	}
	sort.Slice(regions, func(i, j int) bool {
		if counts[regions[i]] != counts[regions[j]] {
			return counts[regions[i]] > counts[regions[j]]
		}
		return regions[i] < regions[j]
	})

	rows := make([][]string, len(regions))
	for i, r := range regions {
		rows[i] = []string{r, strconv.Itoa(counts[r])}
	}

	md.H2("Regions")
	md.PlainText("")
	md.Table(markdown.TableSet{Header: []string{"Region", "Leads"}, Rows: rows})
	md.PlainText("")
}

func writeLeads(md *markdown.Markdown, leads []models.ClassifiedLead) {
	if len(leads) == 0 {
		return
	}
	md.H2("Leads")
	md.PlainText("")

	shown := leads
	if len(shown) > maxLeadRows {
		shown = shown[:maxLeadRows]
	}
	rows := make([][]string, len(shown))
	withContact := 0
	for _, l := range leads {
		if !l.Contact.IsEmpty() {
			withContact++
		}
	}
	for i, l := range shown {
		rows[i] = []string{
			"[@" + l.Handle.String() + "](" + l.Handle.ProfileURL() + ")",
			string(l.Category),
			orDash(l.Region),
			orDash(l.Contact.WhatsAppNumber),
			strconv.Itoa(l.Depth),
		}
	}
	md.PlainTextf("%d of %d leads carry WhatsApp contact details.", withContact, len(leads))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Handle", "Category", "Region", "WhatsApp", "Depth"},
		Rows:   rows,
	})
	md.PlainText("")
	if len(leads) > maxLeadRows {
		md.PlainTextf("Showing the first %d leads. The exports contain all of them.", maxLeadRows)
		md.PlainText("")
	}
}

func writeOutputs(md *markdown.Markdown, outputs []string) {
	if len(outputs) == 0 {
		return
	}
	md.H2("Outputs")
	md.PlainText("")
	files := make([]string, len(outputs))
	for i, o := range outputs {
		files[i] = "`" + o + "`"
	}
	md.BulletList(files...)
	md.PlainText("")
}

func stopText(r crawler.StopReason) string {
	switch r {
	case crawler.StopFrontierExhausted:
		return "no handles left to visit"
	case crawler.StopDepthLimit:
		return "maximum depth reached"
	case crawler.StopProfileLimit:
		return "profile limit reached"
	case crawler.StopCancelled:
		return "interrupted"
	}
	return orDash(string(r))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05 MST")
}

func percent(n, total int) string {
	if total == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.0f%%", float64(n)*100/float64(total))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
