package ui

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"igleads/pkg/crawler"
	"igleads/pkg/metrics"
	"igleads/pkg/models"
)

// Progress prints one line per depth and per emitted lead while forwarding
// every observation to the wrapped recorder
type Progress struct {
	next    metrics.Recorder
	printer *Printer
	limit   int

	mu        sync.Mutex
	visited   int
	emitted   int
	failures  int
	startTime time.Time
}

// NewProgress wraps next. limit is the run's profile cap, shown as the
// denominator.
func NewProgress(p *Printer, next metrics.Recorder, limit int) *Progress {
	if next == nil {
		next = metrics.Nop{}
	}
	return &Progress{next: next, printer: p, limit: limit, startTime: time.Now()}
}

func (p *Progress) HandleVisited(depth int) {
	p.mu.Lock()
	p.visited++
	p.mu.Unlock()
	p.next.HandleVisited(depth)
}

func (p *Progress) FetchObserved(d time.Duration, err error) {
	if err != nil {
		p.mu.Lock()
		p.failures++
		p.mu.Unlock()
	}
	p.next.FetchObserved(d, err)
}

func (p *Progress) ExpandObserved(d time.Duration, err error) {
	if err != nil {
		p.mu.Lock()
		p.failures++
		p.mu.Unlock()
	}
	p.next.ExpandObserved(d, err)
}

func (p *Progress) LeadEmitted(category models.Category) {
	p.mu.Lock()
	p.emitted++
	line := fmt.Sprintf("[%d/%d] %s lead • %d visited • %s",
		p.emitted, p.limit, category, p.visited, formatDuration(time.Since(p.startTime)))
	failures := p.failures
	p.mu.Unlock()

	if failures > 0 {
		line += " • " + p.printer.paint(Red)(strconv.Itoa(failures)+" failed calls")
	}
	p.printer.Plain("%s", line)
	p.next.LeadEmitted(category)
}

func (p *Progress) SinkFailed() {
	p.printer.Warning("A lead could not be written to every output")
	p.next.SinkFailed()
}

func (p *Progress) Irrelevant() {
	p.next.Irrelevant()
}

func (p *Progress) DepthStarted(depth, frontier int) {
	p.printer.Highlight(fmt.Sprintf("Depth %d: %d profiles to visit", depth, frontier))
	p.next.DepthStarted(depth, frontier)
}

// PrintSummary prints the end-of-run counters
func (p *Printer) PrintSummary(s *crawler.Summary) {
	if s == nil {
		return
	}
	fmt.Fprintln(p.out)
	p.Success(fmt.Sprintf("Crawl finished: %s", s.StopReason))
	p.Info("Run", s.RunID)
	p.Info("Duration", formatDuration(s.Duration()))
	p.Info("Visited", strconv.Itoa(s.Visited))
	p.Info("Leads", strconv.Itoa(s.Emitted))
	p.Info("Irrelevant", strconv.Itoa(s.Irrelevant))
	p.Info("Deepest level", strconv.Itoa(s.MaxDepthReached))

	if n := s.FetchFailures + s.ExpandFailures; n > 0 {
		p.Warning(fmt.Sprintf("%d fetch and %d expand calls failed", s.FetchFailures, s.ExpandFailures))
	}
	if s.SinkFailures > 0 {
		p.Error(fmt.Sprintf("%d leads were not written to every output", s.SinkFailures), nil)
	}

	categories := make([]models.Category, 0, len(s.Categories))
	for c, n := range s.Categories {
		if n > 0 {
			categories = append(categories, c)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	for _, c := range categories {
		p.Plain("  %-12s %d", c, s.Categories[c])
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
