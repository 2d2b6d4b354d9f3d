package sink

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"igleads/pkg/models"
)

// Sink receives classified leads. Emit may be called from several goroutines
// when the crawler runs in parallel, so implementations must be safe for
// concurrent use.
type Sink interface {
	Emit(ctx context.Context, lead models.ClassifiedLead) error
	Close() error
}

// Columns is the header of tabular exports
var Columns = []string{
	"Username",
	"Full Name",
	"Bio",
	"WhatsApp Number",
	"WhatsApp Group Link",
	"Type",
	"Region",
	"Follower Count",
	"Profile URL",
	"External Link",
}

// Row renders a lead in Columns order
func Row(lead models.ClassifiedLead) []string {
	followers := ""
	if lead.FollowerCount != nil {
		followers = strconv.Itoa(*lead.FollowerCount)
	}
	profileURL := lead.ProfileURL
	if profileURL == "" {
		profileURL = lead.Handle.ProfileURL()
	}
	return []string{
		lead.Handle.String(),
		lead.DisplayName,
		lead.Bio,
		lead.Contact.WhatsAppNumber,
		lead.Contact.WhatsAppGroupLink,
		string(lead.Category),
		lead.Region,
		followers,
		profileURL,
		lead.ExternalLink,
	}
}

// MultiSink fans every lead out to all of its sinks. A failing sink does not
// stop the others; their errors are joined.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a fan-out sink
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Emit(ctx context.Context, lead models.ClassifiedLead) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(ctx, lead); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MemorySink keeps leads in memory, in emission order
type MemorySink struct {
	mu     sync.Mutex
	leads  []models.ClassifiedLead
	closed bool
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Emit(_ context.Context, lead models.ClassifiedLead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.leads = append(m.leads, lead)
	return nil
}

func (m *MemorySink) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Leads returns a copy of everything emitted so far
func (m *MemorySink) Leads() []models.ClassifiedLead {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.ClassifiedLead, len(m.leads))
	copy(out, m.leads)
	return out
}

// Len returns the number of leads emitted so far
func (m *MemorySink) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leads)
}

// ErrClosed is returned by Emit after Close
var ErrClosed = errors.New("sink is closed")
