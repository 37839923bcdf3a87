package harvest

import (
	"time"

	"jobharvest/services/harvester/internal/models"
)

type State string

const (
	StateInit         State = "INIT"
	StateFetching     State = "FETCHING"
	StateAccumulating State = "ACCUMULATING"
	StateDone         State = "DONE"
	StateAborted      State = "ABORTED"
)

type StopReason string

const (
	StopEmptyPage    StopReason = "empty_page"
	StopTotalReached StopReason = "total_reached"
	StopShortPage    StopReason = "short_page"
	StopPageCap      StopReason = "page_cap"
	StopFetchError   StopReason = "fetch_error"
	StopFatal        StopReason = "fatal"
)

// Session is the state of one harvest. Only Loop mutates it; callers get it
// back once the loop has reached Done or Aborted.
type Session struct {
	ID         string
	Offset     int
	Limit      int
	Total      *int
	Pages      int
	State      State
	StopReason StopReason
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time

	accumulated []models.NormalizedRecord
}

func newSession(id string, limit int, now time.Time) *Session {
	return &Session{
		ID:        id,
		Limit:     limit,
		State:     StateInit,
		StartedAt: now,
	}
}

// Records returns the accumulated records in harvest order.
func (s *Session) Records() []models.NormalizedRecord {
	out := make([]models.NormalizedRecord, len(s.accumulated))
	copy(out, s.accumulated)
	return out
}

func (s *Session) Len() int {
	return len(s.accumulated)
}

// Terminal reports whether the session reached Done or Aborted.
func (s *Session) Terminal() bool {
	return s.State == StateDone || s.State == StateAborted
}

// observeTotal adopts the first usable total. A zero total on a page with
// entries is ignored: some listings report 0 after the first page.
func (s *Session) observeTotal(page *models.PageResponse) {
	if s.Total != nil || page.Total == nil {
		return
	}
	if *page.Total == 0 && len(page.Entries) > 0 {
		return
	}
	total := *page.Total
	s.Total = &total
}

func (s *Session) append(records ...models.NormalizedRecord) {
	s.accumulated = append(s.accumulated, records...)
}

func (s *Session) finish(state State, reason StopReason, err error, now time.Time) {
	s.State = state
	s.StopReason = reason
	s.Err = err
	s.FinishedAt = now
}
