package review

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"paper-filter/logger"
	"paper-filter/types"
)

// Decision is the reviewer's verdict on one record
type Decision string

const (
	Undecided Decision = ""
	Keep      Decision = "keep"
	Reject    Decision = "reject"
)

// DecisionFor maps a swipe to a Decision
func DecisionFor(keep bool) Decision {
	if keep {
		return Keep
	}
	return Reject
}

// ParseDecision accepts keep/reject and the swipe shorthands y/n
func ParseDecision(s string) (Decision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keep", "y", "yes":
		return Keep, nil
	case "reject", "n", "no":
		return Reject, nil
	}
	return Undecided, fmt.Errorf("unknown decision %q", s)
}

// State of a review session
type State string

const (
	StateEmpty    State = "empty"
	StateActive   State = "active"
	StateComplete State = "complete"
)

// RetainPolicy decides what happens to decisions when a new snapshot loads
type RetainPolicy string

const (
	// DiscardDecisions starts every snapshot with a clean slate.
	DiscardDecisions RetainPolicy = "discard"
	// PreserveDecisions keeps decisions for ids present in the new snapshot.
	PreserveDecisions RetainPolicy = "preserve"
)

// ParseRetainPolicy validates a retain policy string; empty means discard
func ParseRetainPolicy(s string) (RetainPolicy, error) {
	switch RetainPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", DiscardDecisions:
		return DiscardDecisions, nil
	case PreserveDecisions:
		return PreserveDecisions, nil
	}
	return "", logger.NewAppErrorWithCode(logger.ErrorTypeConfig,
		fmt.Sprintf("unknown retain policy %q", s), "INVALID_RETAIN_POLICY", nil)
}

// Progress is a point-in-time view of the counters. Decided always equals
// Kept + Rejected and only counts records in the current snapshot.
type Progress struct {
	Cursor   int   `json:"index"`
	Total    int   `json:"total"`
	Decided  int   `json:"decided"`
	Kept     int   `json:"kept_count"`
	Rejected int   `json:"rejected_count"`
	State    State `json:"state"`
}

// Session walks a snapshot of the filtered table one record at a time.
// The cursor is always in [0, len(snapshot)]. Decisions are keyed by record
// id. Not safe for concurrent use; callers serialize access.
type Session struct {
	id        string
	policy    RetainPolicy
	snapshot  types.Table
	cursor    int
	decisions map[int]Decision
	logger    *logger.Logger
}

// NewSession creates an empty session with a fresh id
func NewSession(policy RetainPolicy, log *logger.Logger) *Session {
	return NewSessionWithID(uuid.NewString(), policy, log)
}

// NewSessionWithID creates an empty session, typically to resume a stored one
func NewSessionWithID(id string, policy RetainPolicy, log *logger.Logger) *Session {
	if policy != PreserveDecisions {
		policy = DiscardDecisions
	}
	if log == nil {
		log = logger.New("review")
	}
	return &Session{
		id:        id,
		policy:    policy,
		decisions: make(map[int]Decision),
		logger:    log.WithSessionID(id),
	}
}

// ID returns the session id
func (s *Session) ID() string { return s.id }

// Policy returns the retain policy
func (s *Session) Policy() RetainPolicy { return s.policy }

// Len returns the snapshot size
func (s *Session) Len() int { return s.snapshot.Len() }

// Cursor returns the current position
func (s *Session) Cursor() int { return s.cursor }

// State derives the state from the cursor and snapshot size
func (s *Session) State() State {
	switch {
	case s.snapshot.Len() == 0:
		return StateEmpty
	case s.cursor >= s.snapshot.Len():
		return StateComplete
	default:
		return StateActive
	}
}

// Load replaces the snapshot and rewinds the cursor. Under
// DiscardDecisions every prior decision is dropped.
func (s *Session) Load(table types.Table) {
	s.snapshot = table.Clone()
	s.cursor = 0
	if s.policy == DiscardDecisions {
		s.decisions = make(map[int]Decision)
	}
	s.logger.InfoWithCount("Review snapshot loaded", s.snapshot.Len(), map[string]interface{}{
		"policy":   string(s.policy),
		"retained": s.Progress().Decided,
	})
}

// Restore merges stored decisions into the session without moving the cursor.
func (s *Session) Restore(decisions map[int]Decision) {
	for id, d := range decisions {
		if d == Keep || d == Reject {
			s.decisions[id] = d
		}
	}
}

// Current returns the record under the cursor
func (s *Session) Current() (types.Record, bool) {
	if s.State() != StateActive {
		return types.Record{}, false
	}
	return s.snapshot.Records[s.cursor], true
}

// Decide records a verdict for the current record and advances the cursor.
// Re-deciding a record overwrites its earlier decision.
func (s *Session) Decide(keep bool) (types.Record, error) {
	if state := s.State(); state != StateActive {
		return types.Record{}, logger.SessionState("decide", string(state))
	}
	record := s.snapshot.Records[s.cursor]
	decision := DecisionFor(keep)
	s.decisions[record.ID] = decision
	s.cursor++

	s.logger.Debug("Review decision recorded", map[string]interface{}{
		"record_id": record.ID,
		"decision":  string(decision),
		"cursor":    s.cursor,
	})
	if s.State() == StateComplete {
		p := s.Progress()
		s.logger.Info("Review session complete", map[string]interface{}{
			"kept":     p.Kept,
			"rejected": p.Rejected,
		})
	}
	return record, nil
}

// Previous steps the cursor back one record, floored at zero. The decision
// of the record stepped onto is kept until it is decided again.
func (s *Session) Previous() error {
	if s.State() == StateEmpty {
		return logger.SessionState("go back", string(StateEmpty))
	}
	if s.cursor > 0 {
		s.cursor--
	}
	return nil
}

// Reset rewinds to the first record and clears every decision
func (s *Session) Reset() {
	s.cursor = 0
	s.decisions = make(map[int]Decision)
	s.logger.Info("Review session reset")
}

// SkipDecided moves the cursor forward to the first undecided record at or
// after it and returns how many records were skipped.
func (s *Session) SkipDecided() int {
	skipped := 0
	for s.cursor < s.snapshot.Len() {
		if s.decisions[s.snapshot.Records[s.cursor].ID] == Undecided {
			break
		}
		s.cursor++
		skipped++
	}
	return skipped
}

// Decision returns the verdict for a record id
func (s *Session) Decision(id int) Decision {
	return s.decisions[id]
}

// Decisions returns a copy of every stored decision, including ids outside
// the current snapshot that were retained by policy.
func (s *Session) Decisions() map[int]Decision {
	out := make(map[int]Decision, len(s.decisions))
	for id, d := range s.decisions {
		out[id] = d
	}
	return out
}

// Progress reports counters over the current snapshot
func (s *Session) Progress() Progress {
	p := Progress{
		Cursor: s.cursor,
		Total:  s.snapshot.Len(),
		State:  s.State(),
	}
	for _, record := range s.snapshot.Records {
		switch s.decisions[record.ID] {
		case Keep:
			p.Kept++
		case Reject:
			p.Rejected++
		}
	}
	p.Decided = p.Kept + p.Rejected
	return p
}

// KeptTable returns the kept records of the snapshot in snapshot order
func (s *Session) KeptTable() types.Table {
	return s.tableWith(Keep)
}

// RejectedTable returns the rejected records of the snapshot in snapshot order
func (s *Session) RejectedTable() types.Table {
	return s.tableWith(Reject)
}

func (s *Session) tableWith(decision Decision) types.Table {
	return s.snapshot.Subset(func(record types.Record) bool {
		return s.decisions[record.ID] == decision
	})
}
