package processor

import (
	"context"
	"strings"
	"sync"

	"paper-filter/analyzer"
	"paper-filter/deduplicator"
	"paper-filter/filter"
	"paper-filter/logger"
	"paper-filter/review"
	"paper-filter/types"
)

// DefaultPerPage is the preview page size when none is given
const DefaultPerPage = 50

// WorkspaceOptions configures a Workspace
type WorkspaceOptions struct {
	Dedup        deduplicator.Options
	Analyzer     analyzer.Options
	RetainPolicy review.RetainPolicy
	// Cumulative narrows each filter result with the next criteria instead
	// of filtering the base table with the latest criteria only.
	Cumulative bool
	// Store persists review decisions; nil keeps them in memory only.
	Store review.DecisionStore
	// SessionID resumes a stored review session instead of starting a new one.
	// It applies to the first dataset loaded only.
	SessionID string
	Logger    *logger.Logger
}

// Summary describes the loaded dataset and the current filter result
type Summary struct {
	Loaded          bool               `json:"loaded"`
	TotalRecords    int                `json:"total"`
	FilteredRecords int                `json:"filtered"`
	RemovedRecords  int                `json:"removed"`
	ExcludedRecords int                `json:"excluded"`
	TitleColumn     string             `json:"title_column"`
	Columns         []string           `json:"columns"`
	Dedup           deduplicator.Stats `json:"deduplication_stats"`
	Filter          filter.Stats       `json:"filter_stats"`
	History         []filter.Criteria  `json:"criteria_history"`
}

// Page is one page of the filtered preview
type Page struct {
	Records []types.Record `json:"data"`
	Columns []string       `json:"columns"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	Total   int            `json:"total"`
	Search  string         `json:"search,omitempty"`
}

// Workspace holds one user's dataset, filter state and review session.
// Every method takes the workspace lock, so concurrent callers see each
// operation applied atomically.
type Workspace struct {
	mu sync.Mutex

	logger   *logger.Logger
	dedup    *deduplicator.Deduplicator
	analyzer *analyzer.Analyzer
	policy   review.RetainPolicy
	store    review.DecisionStore

	cumulative bool

	loaded      bool
	base        types.Table
	filtered    types.Table
	dedupStats  deduplicator.Stats
	filterStats filter.Stats
	exclusions  *filter.Exclusions
	history     []filter.Criteria

	sessionID string
	session   *review.Session
}

// NewWorkspace creates an empty workspace
func NewWorkspace(opts WorkspaceOptions) *Workspace {
	log := opts.Logger
	if log == nil {
		log = logger.New("workspace")
	}
	if opts.Dedup.Key == nil {
		opts.Dedup = deduplicator.DefaultOptions()
	}
	return &Workspace{
		logger:     log,
		dedup:      deduplicator.NewDeduplicatorWithLogger(log.Named("deduplicator"), opts.Dedup),
		analyzer:   analyzer.New(opts.Analyzer),
		policy:     opts.RetainPolicy,
		cumulative: opts.Cumulative,
		store:      opts.Store,
		sessionID:  opts.SessionID,
		exclusions: filter.NewExclusions(),
	}
}

func noData() error {
	return logger.NewAppErrorWithCode(logger.ErrorTypeData, "no data loaded", logger.CodeNoData, nil)
}

// Load dedupes table and makes it the base dataset. Exclusions, criteria
// history and the review session are cleared. Reloading also drops a resumed
// session id, since stored decisions are keyed by row ids of the old dataset.
func (w *Workspace) Load(table types.Table) Summary {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.loaded {
		w.sessionID = ""
	}
	w.base, w.dedupStats = w.dedup.DeduplicateWithStats(table)
	w.loaded = true
	w.exclusions.Clear()
	w.history = nil
	w.session = nil
	w.refilter()

	w.logger.Info("Dataset loaded", map[string]interface{}{
		"original":     w.dedupStats.OriginalCount,
		"unique":       w.dedupStats.UniqueCount,
		"title_column": w.base.TitleColumn,
	})
	return w.summary()
}

// ApplyFilter filters the base table with c and the manual exclusions.
// Invalid criteria leave the workspace unchanged.
func (w *Workspace) ApplyFilter(c filter.Criteria) (filter.Stats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.loaded {
		return filter.Stats{}, noData()
	}
	if err := c.Validate(); err != nil {
		return filter.Stats{}, err
	}

	w.history = append(w.history, c)
	w.refilter()

	w.logger.Info("Filter applied", map[string]interface{}{
		"criteria":  c.String(),
		"remaining": w.filterStats.RemainingCount,
		"removed":   w.filterStats.RemovedCount,
	})
	return w.filterStats, nil
}

// ResetFilters drops the criteria history. Manual exclusions still apply.
func (w *Workspace) ResetFilters() (filter.Stats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.loaded {
		return filter.Stats{}, noData()
	}
	w.history = nil
	w.refilter()
	return w.filterStats, nil
}

// RemoveRecords excludes ids by hand and re-applies the latest criteria.
// Ids not in the dataset are ignored; the number newly excluded is returned.
func (w *Workspace) RemoveRecords(ids ...int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.loaded {
		return 0, noData()
	}

	known := make(map[int]struct{}, w.base.Len())
	for _, id := range w.base.IDs() {
		known[id] = struct{}{}
	}
	added := 0
	for _, id := range ids {
		if _, ok := known[id]; ok && !w.exclusions.Contains(id) {
			w.exclusions.Add(id)
			added++
		}
	}

	w.refilter()
	w.logger.Info("Records removed", map[string]interface{}{
		"requested": len(ids),
		"removed":   added,
		"remaining": w.filtered.Len(),
	})
	return added, nil
}

// ClearExclusions restores every manually removed record
func (w *Workspace) ClearExclusions() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.loaded {
		return noData()
	}
	w.exclusions.Clear()
	w.refilter()
	return nil
}

// criteria returns the criteria the filtered table is built from: the whole
// history when cumulative, otherwise the latest entry only.
func (w *Workspace) criteria() []filter.Criteria {
	if len(w.history) == 0 {
		return []filter.Criteria{{}}
	}
	if w.cumulative {
		return w.history
	}
	return w.history[len(w.history)-1:]
}

// refilter recomputes the filtered table from the base. Every criteria in
// the history has already been validated. A live review session is
// reloaded with the new snapshot.
func (w *Workspace) refilter() {
	filtered := w.base
	stats := filter.Stats{OriginalCount: w.base.Len()}
	for i, c := range w.criteria() {
		exclusions := w.exclusions
		if i > 0 {
			exclusions = nil
		}
		next, step, err := filter.Apply(filtered, c, exclusions)
		if err != nil {
			w.logger.Error("Filter failed", err)
			return
		}
		filtered = next
		stats.Add(step)
	}
	w.filtered, w.filterStats = filtered, stats

	if w.session == nil {
		return
	}
	if w.policy == review.PreserveDecisions {
		w.session.Load(w.filtered)
		return
	}
	// discarded decisions start a fresh session so stored ones stay intact
	w.session = review.NewSession(w.policy, w.logger.Named("review"))
	w.session.Load(w.filtered)
}

// Filtered returns the current filtered table
func (w *Workspace) Filtered() (types.Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.loaded {
		return types.Table{}, noData()
	}
	return w.filtered.Clone(), nil
}

// Exclusions returns the manually excluded ids in ascending order
func (w *Workspace) Exclusions() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.exclusions.IDs()
}

// Preview returns one zero-based page of the filtered table, restricted to
// titles containing search (case-insensitive) when search is not blank.
func (w *Workspace) Preview(page, perPage int, search string) (Page, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.loaded {
		return Page{}, noData()
	}
	if page < 0 {
		page = 0
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	records := w.filtered.Records
	if needle := strings.ToLower(strings.TrimSpace(search)); needle != "" {
		matched := make([]types.Record, 0, len(records))
		for _, record := range records {
			if strings.Contains(strings.ToLower(record.Title), needle) {
				matched = append(matched, record)
			}
		}
		records = matched
	}

	result := Page{
		Records: []types.Record{},
		Columns: w.filtered.Columns,
		Page:    page,
		PerPage: perPage,
		Total:   len(records),
		Search:  search,
	}
	start := page * perPage
	if start < len(records) {
		end := start + perPage
		if end > len(records) {
			end = len(records)
		}
		result.Records = append(result.Records, records[start:end]...)
	}
	return result, nil
}

// WordFrequencies ranks title terms of the filtered table. An empty or
// missing dataset yields no terms.
func (w *Workspace) WordFrequencies(n int) []analyzer.TermCount {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.loaded || w.filtered.Len() == 0 {
		return []analyzer.TermCount{}
	}
	return w.analyzer.TopTerms(w.filtered, n)
}

// Summary reports dataset and filter counters
func (w *Workspace) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summary()
}

func (w *Workspace) summary() Summary {
	history := make([]filter.Criteria, len(w.history))
	copy(history, w.history)
	return Summary{
		Loaded:          w.loaded,
		TotalRecords:    w.base.Len(),
		FilteredRecords: w.filtered.Len(),
		RemovedRecords:  w.base.Len() - w.filtered.Len(),
		ExcludedRecords: w.exclusions.Len(),
		TitleColumn:     w.base.TitleColumn,
		Columns:         w.base.Columns,
		Dedup:           w.dedupStats,
		Filter:          w.filterStats,
		History:         history,
	}
}

// ensureSession creates the review session on first use and restores
// stored decisions for it.
func (w *Workspace) ensureSession(ctx context.Context) (*review.Session, error) {
	if !w.loaded {
		return nil, noData()
	}
	if w.session != nil {
		return w.session, nil
	}

	var session *review.Session
	if w.sessionID != "" {
		session = review.NewSessionWithID(w.sessionID, w.policy, w.logger.Named("review"))
	} else {
		session = review.NewSession(w.policy, w.logger.Named("review"))
	}
	session.Load(w.filtered)

	if w.store != nil {
		decisions, err := w.store.LoadDecisions(ctx, session.ID())
		if err != nil {
			return nil, err
		}
		if len(decisions) > 0 {
			session.Restore(decisions)
			skipped := session.SkipDecided()
			w.logger.Info("Review session resumed", map[string]interface{}{
				"session_id": session.ID(),
				"restored":   len(decisions),
				"skipped":    skipped,
			})
		}
	}

	w.session = session
	return session, nil
}

// SessionID returns the id of the review session, creating it if needed
func (w *Workspace) SessionID(ctx context.Context) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	session, err := w.ensureSession(ctx)
	if err != nil {
		return "", err
	}
	return session.ID(), nil
}

// Current returns the record under review; ok is false once the session is
// complete or the snapshot is empty.
func (w *Workspace) Current(ctx context.Context) (record types.Record, progress review.Progress, ok bool, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	session, err := w.ensureSession(ctx)
	if err != nil {
		return types.Record{}, review.Progress{}, false, err
	}
	record, ok = session.Current()
	return record, session.Progress(), ok, nil
}

// Decide records a keep or reject for the current record. The decision is
// persisted before the session advances, so a store failure leaves the
// session unchanged.
func (w *Workspace) Decide(ctx context.Context, keep bool) (review.Progress, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	session, err := w.ensureSession(ctx)
	if err != nil {
		return review.Progress{}, err
	}
	record, ok := session.Current()
	if !ok {
		return session.Progress(), logger.SessionState("decide", string(session.State()))
	}
	if w.store != nil {
		if err := w.store.SaveDecision(ctx, session.ID(), record, review.DecisionFor(keep)); err != nil {
			return session.Progress(), err
		}
	}
	if _, err := session.Decide(keep); err != nil {
		return session.Progress(), err
	}
	return session.Progress(), nil
}

// Previous steps the review cursor back one record
func (w *Workspace) Previous(ctx context.Context) (review.Progress, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	session, err := w.ensureSession(ctx)
	if err != nil {
		return review.Progress{}, err
	}
	if err := session.Previous(); err != nil {
		return session.Progress(), err
	}
	return session.Progress(), nil
}

// ResetSession rewinds the review and forgets its decisions, including
// stored ones.
func (w *Workspace) ResetSession(ctx context.Context) (review.Progress, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	session, err := w.ensureSession(ctx)
	if err != nil {
		return review.Progress{}, err
	}
	if w.store != nil {
		if err := w.store.ClearDecisions(ctx, session.ID()); err != nil {
			return session.Progress(), err
		}
	}
	session.Reset()
	return session.Progress(), nil
}

// Progress reports the review counters
func (w *Workspace) Progress(ctx context.Context) (review.Progress, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	session, err := w.ensureSession(ctx)
	if err != nil {
		return review.Progress{}, err
	}
	return session.Progress(), nil
}

// KeptTable returns the records kept during review. It fails with a no-data
// error when nothing has been kept yet.
func (w *Workspace) KeptTable(ctx context.Context) (types.Table, error) {
	return w.decidedTable(ctx, (*review.Session).KeptTable, "no kept papers to export")
}

// RejectedTable returns the records rejected during review
func (w *Workspace) RejectedTable(ctx context.Context) (types.Table, error) {
	return w.decidedTable(ctx, (*review.Session).RejectedTable, "no rejected papers to export")
}

func (w *Workspace) decidedTable(ctx context.Context, pick func(*review.Session) types.Table, empty string) (types.Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	session, err := w.ensureSession(ctx)
	if err != nil {
		return types.Table{}, err
	}
	table := pick(session)
	if table.Len() == 0 {
		return table, logger.NewAppErrorWithCode(logger.ErrorTypeData, empty, logger.CodeNoData, nil)
	}
	return table, nil
}
