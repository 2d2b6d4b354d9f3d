package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"igleads/pkg/checkpoint"
	"igleads/pkg/classifier"
	errs "igleads/pkg/errors"
	"igleads/pkg/logger"
	"igleads/pkg/metrics"
	"igleads/pkg/models"
	"igleads/pkg/ratelimit"
	"igleads/pkg/sink"
)

// Fetcher loads one profile
type Fetcher interface {
	Fetch(ctx context.Context, handle models.Handle) (models.ProfileRecord, error)
}

// Expander lists the accounts adjacent to a handle
type Expander interface {
	Expand(ctx context.Context, handle models.Handle) ([]models.Handle, error)
}

// Extractor pulls contact details and a region out of profile text
type Extractor interface {
	ExtractProfile(bio, externalLink string) models.ContactInfo
	InferRegion(number, bio string) string
}

// Checkpointer persists traversal snapshots
type Checkpointer interface {
	Save(cp *checkpoint.Checkpoint) error
}

// Dependencies are the collaborators the engine drives. Recorder and
// Checkpointer are optional; Pacer defaults to no delay and Logger to the
// global logger.
type Dependencies struct {
	Fetcher      Fetcher
	Expander     Expander
	Classifier   classifier.Classifier
	Extractor    Extractor
	Sink         sink.Sink
	Pacer        ratelimit.Pacer
	Logger       logger.Logger
	Recorder     metrics.Recorder
	Checkpointer Checkpointer
}

// Options bound a run
type Options struct {
	MaxDepth        int
	MaxProfiles     int
	Workers         int
	CheckpointEvery int
	// RunID tags sinks and checkpoints. A random one is generated when empty.
	RunID string
	// Now stamps leads. Defaults to time.Now.
	Now func() time.Time
}

// Engine runs a bounded breadth-first traversal from seed handles, emitting
// a classified lead for every relevant profile it visits
type Engine struct {
	deps Dependencies
	opts Options
	log  logger.Logger

	mu     sync.Mutex
	saveMu sync.Mutex
}

// New validates the options and collaborators
func New(deps Dependencies, opts Options) (*Engine, error) {
	var problems []error
	if opts.MaxDepth < 0 {
		problems = append(problems, fmt.Errorf("max depth must be >= 0, got %d", opts.MaxDepth))
	}
	if opts.MaxProfiles < 1 {
		problems = append(problems, fmt.Errorf("max profiles must be >= 1, got %d", opts.MaxProfiles))
	}
	if deps.Fetcher == nil {
		problems = append(problems, errors.New("fetcher is required"))
	}
	if deps.Expander == nil {
		problems = append(problems, errors.New("expander is required"))
	}
	if deps.Classifier == nil {
		problems = append(problems, errors.New("classifier is required"))
	}
	if deps.Extractor == nil {
		problems = append(problems, errors.New("extractor is required"))
	}
	if deps.Sink == nil {
		problems = append(problems, errors.New("sink is required"))
	}
	if err := errs.NewConfigError(problems...); err != nil {
		return nil, err
	}

	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if deps.Pacer == nil {
		deps.Pacer = ratelimit.NoDelay{}
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.Nop{}
	}

	return &Engine{
		deps: deps,
		opts: opts,
		log:  logger.OrDefault(deps.Logger).WithField("run_id", opts.RunID),
	}, nil
}

// RunID returns the identifier of the engine's run
func (e *Engine) RunID() string {
	return e.opts.RunID
}

// Run traverses from the given seeds. Invalid seeds are skipped with a
// warning; no valid seed at all is a configuration error. On cancellation
// the partial summary is returned with the context's error.
func (e *Engine) Run(ctx context.Context, seeds []string) (*Summary, error) {
	handles, invalid := models.NormalizeHandles(seeds)
	for _, raw := range invalid {
		e.log.WarnWithFields("Skipping invalid seed", map[string]interface{}{"seed": raw})
	}
	if len(handles) == 0 {
		return nil, errs.NewConfigError(errors.New("no valid seed handles"))
	}

	return e.traverse(ctx, newState(handles))
}

// Resume continues a run from a saved snapshot. Counters in the returned
// summary cover only the resumed part, except Emitted which carries over so
// the profile cap spans the whole run.
func (e *Engine) Resume(ctx context.Context, cp *checkpoint.Checkpoint) (*Summary, error) {
	if cp == nil {
		return nil, errs.NewConfigError(errors.New("no checkpoint to resume from"))
	}
	if cp.RunID != "" {
		e.opts.RunID = cp.RunID
		e.log = logger.OrDefault(e.deps.Logger).WithField("run_id", cp.RunID)
	}
	st := stateFromCheckpoint(cp)

	e.log.InfoWithFields("Resuming crawl", map[string]interface{}{
		"depth":    st.depth,
		"visited":  len(st.visited),
		"frontier": len(st.frontier),
		"reexpand": len(st.reexpand),
		"emitted":  st.emitted,
	})
	return e.traverse(ctx, st)
}

func (e *Engine) traverse(ctx context.Context, st *state) (*Summary, error) {
	sum := newSummary(e.opts.RunID, st.seeds, e.opts.Now())
	for c, n := range st.categories {
		sum.Categories[c] = n
	}
	sum.Emitted = st.emitted
	initialVisited := len(st.visited)

	logger.LogComponentStart(e.log, "crawler", map[string]interface{}{
		"seeds":        len(st.seeds),
		"max_depth":    e.opts.MaxDepth,
		"max_profiles": e.opts.MaxProfiles,
		"workers":      e.opts.Workers,
	})

	finish := func(reason StopReason) {
		e.mu.Lock()
		sum.Visited = len(st.visited) - initialVisited
		sum.Emitted = st.emitted
		sum.StopReason = reason
		sum.FinishedAt = e.opts.Now()
		e.mu.Unlock()

		e.saveCheckpoint(st)
		e.log.InfoWithFields("Crawl finished", sum.Fields())
		logger.LogComponentStop(e.log, "crawler", string(reason))
	}

	if st.emitted >= e.opts.MaxProfiles {
		finish(StopProfileLimit)
		return sum, nil
	}

	if err := e.reexpand(ctx, st, sum); err != nil {
		finish(StopCancelled)
		return sum, err
	}

	for {
		e.runDepth(ctx, st, sum)

		if err := ctx.Err(); err != nil {
			finish(StopCancelled)
			return sum, err
		}
		if st.capped {
			finish(StopProfileLimit)
			return sum, nil
		}

		e.saveCheckpoint(st)
		if st.depth >= e.opts.MaxDepth || !st.advance() {
			break
		}
	}

	reason := StopFrontierExhausted
	if st.depthLimited {
		reason = StopDepthLimit
	}
	finish(reason)
	return sum, nil
}

// reexpand finishes the expansions an earlier cancellation cut short, so
// their neighbors join the next depth before the current one resumes
func (e *Engine) reexpand(ctx context.Context, st *state, sum *Summary) error {
	e.mu.Lock()
	owed := st.reexpand
	st.reexpand = nil
	e.mu.Unlock()

	for i, h := range owed {
		if err := ctx.Err(); err != nil {
			e.mu.Lock()
			st.reexpand = append(st.reexpand, owed[i:]...)
			e.mu.Unlock()
			return err
		}
		e.expand(ctx, st, sum, h, e.log.WithFields(map[string]interface{}{"handle": h.String(), "depth": st.depth}))
	}
	return ctx.Err()
}

// runDepth processes the pending handles of the current depth. With one
// worker handles run strictly in frontier order on the calling goroutine.
func (e *Engine) runDepth(ctx context.Context, st *state, sum *Summary) {
	e.mu.Lock()
	d := st.depth
	pending := st.pending()
	e.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	e.deps.Recorder.DepthStarted(d, len(pending))
	e.log.InfoWithFields("Processing depth", map[string]interface{}{
		"depth":    d,
		"frontier": len(pending),
	})

	depthCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if e.opts.Workers == 1 {
		for _, h := range pending {
			if depthCtx.Err() != nil || !e.claim(st, h) {
				break
			}
			e.process(depthCtx, cancel, st, sum, h, d)
		}
		return
	}

	g, gctx := errgroup.WithContext(depthCtx)
	g.SetLimit(e.opts.Workers)
	for _, h := range pending {
		if gctx.Err() != nil || !e.claim(st, h) {
			break
		}
		handle := h
		g.Go(func() error {
			e.process(gctx, cancel, st, sum, handle, d)
			return nil
		})
	}
	_ = g.Wait()
}

// claim marks h visited before it is dispatched. It reports false once the
// profile cap has tripped.
func (e *Engine) claim(st *state, h models.Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st.capped {
		return false
	}
	st.visit(h)
	return true
}

// process handles one visited handle: fetch, classify, emit and expand
func (e *Engine) process(ctx context.Context, stop context.CancelFunc, st *state, sum *Summary, h models.Handle, d int) {
	log := e.log.WithFields(map[string]interface{}{"handle": h.String(), "depth": d})

	// the handle was marked before dispatch but never started
	if ctx.Err() != nil {
		e.mu.Lock()
		st.unvisit(h)
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	if d > sum.MaxDepthReached {
		sum.MaxDepthReached = d
	}
	e.mu.Unlock()
	e.deps.Recorder.HandleVisited(d)

	start := time.Now()
	record, err := e.deps.Fetcher.Fetch(ctx, h)
	e.deps.Recorder.FetchObserved(time.Since(start), err)
	_ = e.deps.Pacer.Pause(ctx)

	// cancelled before anything was emitted: the whole handle is redone on resume
	if ctx.Err() != nil {
		e.mu.Lock()
		st.unvisit(h)
		e.mu.Unlock()
		return
	}
	if err != nil {
		e.mu.Lock()
		sum.FetchFailures++
		e.mu.Unlock()
		log.WithError(err).Warn("Failed to fetch profile")
		e.checkpointTick(st, sum)
		return
	}

	if !e.deps.Classifier.Relevant(ctx, classifier.FieldsOf(record)) {
		e.mu.Lock()
		sum.Irrelevant++
		e.mu.Unlock()
		e.deps.Recorder.Irrelevant()
		log.Debug("Profile not relevant")
		e.checkpointTick(st, sum)
		return
	}

	lead := e.buildLead(h, record, d)

	// the slot is reserved under the lock; the write happens outside it
	e.mu.Lock()
	if st.capped || st.emitted >= e.opts.MaxProfiles {
		e.mu.Unlock()
		return
	}
	st.emitted++
	st.categories[lead.Category]++
	sum.Categories[lead.Category]++
	sum.Emitted = st.emitted
	if st.emitted >= e.opts.MaxProfiles {
		st.capped = true
		stop()
	}
	capped := st.capped
	e.mu.Unlock()

	// an emission that has started completes even if the run is cancelled
	sinkErr := e.deps.Sink.Emit(context.WithoutCancel(ctx), lead)
	if sinkErr != nil {
		e.mu.Lock()
		sum.SinkFailures++
		e.mu.Unlock()
	}

	e.deps.Recorder.LeadEmitted(lead.Category)
	if sinkErr != nil {
		e.deps.Recorder.SinkFailed()
		log.WithError(sinkErr).Warn("Failed to write lead")
	}
	log.InfoWithFields("Lead emitted", map[string]interface{}{
		"category": string(lead.Category),
		"region":   lead.Region,
	})
	if capped {
		log.InfoWithFields("Profile limit reached", map[string]interface{}{"max_profiles": e.opts.MaxProfiles})
		return
	}

	if d >= e.opts.MaxDepth {
		e.mu.Lock()
		st.depthLimited = true
		e.mu.Unlock()
		e.checkpointTick(st, sum)
		return
	}

	e.expand(ctx, st, sum, h, log)
	e.checkpointTick(st, sum)
}

func (e *Engine) expand(ctx context.Context, st *state, sum *Summary, h models.Handle, log logger.Logger) {
	start := time.Now()
	neighbors, err := e.deps.Expander.Expand(ctx, h)
	e.deps.Recorder.ExpandObserved(time.Since(start), err)
	_ = e.deps.Pacer.Pause(ctx)

	if err != nil {
		if ctx.Err() != nil {
			// the lead is already out; only the neighbors are owed
			e.mu.Lock()
			st.reexpand = append(st.reexpand, h)
			e.mu.Unlock()
			log.Debug("Expansion interrupted")
			return
		}
		e.mu.Lock()
		sum.ExpandFailures++
		e.mu.Unlock()
		log.WithError(err).Warn("Failed to expand profile")
		return
	}

	added := 0
	e.mu.Lock()
	for _, n := range neighbors {
		n = models.NormalizeHandle(string(n))
		if n == h {
			continue
		}
		if st.enqueueNext(n) {
			added++
		}
	}
	e.mu.Unlock()

	log.DebugWithFields("Expanded profile", map[string]interface{}{
		"neighbors": len(neighbors),
		"queued":    added,
	})
}

func (e *Engine) buildLead(h models.Handle, record models.ProfileRecord, d int) models.ClassifiedLead {
	record.Handle = h
	cleaned := classifier.CleanBio(record)
	contactInfo := e.deps.Extractor.ExtractProfile(record.Bio, record.ExternalLink)

	profileURL := record.ProfileURL
	if profileURL == "" {
		profileURL = h.ProfileURL()
	}

	return models.ClassifiedLead{
		Handle:        h,
		DisplayName:   record.DisplayName,
		Bio:           cleaned,
		Contact:       contactInfo,
		Category:      e.deps.Classifier.Categorize(cleaned),
		Region:        e.deps.Extractor.InferRegion(contactInfo.WhatsAppNumber, record.Bio),
		FollowerCount: record.FollowerCount,
		ProfileURL:    profileURL,
		ExternalLink:  record.ExternalLink,
		Depth:         d,
		DiscoveredAt:  e.opts.Now().UTC(),
	}
}

// checkpointTick counts a finished handle and saves every CheckpointEvery
func (e *Engine) checkpointTick(st *state, sum *Summary) {
	if e.deps.Checkpointer == nil || e.opts.CheckpointEvery <= 0 {
		return
	}
	e.mu.Lock()
	st.processed++
	due := st.processed%e.opts.CheckpointEvery == 0
	e.mu.Unlock()
	if due {
		e.saveCheckpoint(st)
	}
}

func (e *Engine) saveCheckpoint(st *state) {
	if e.deps.Checkpointer == nil {
		return
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	cp := st.snapshot(e.opts.RunID, e.opts)
	e.mu.Unlock()

	if err := e.deps.Checkpointer.Save(cp); err != nil {
		e.log.WithError(err).Warn("Failed to save checkpoint")
		return
	}
	e.log.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"depth":    cp.Depth,
		"visited":  len(cp.Visited),
		"frontier": len(cp.Frontier),
	})
}
