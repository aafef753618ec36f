package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"flakewatch/internal/history"
	"flakewatch/internal/quarantine"
	"flakewatch/internal/resolution"
)

// MemStore is an in-memory Store for tests. Implements Store.
type MemStore struct {
	mu          sync.Mutex
	executions  []history.ExecutionRecord
	quarantines map[string]*quarantine.Record // key: projectID + "\x00" + testID
	events      []quarantine.Event
	patterns    map[string][]PatternTest
	resolutions map[string]*resolution.Record
}

// NewMemStore returns a new in-memory Store.
func NewMemStore() *MemStore {
	return &MemStore{
		quarantines: make(map[string]*quarantine.Record),
		patterns:    make(map[string][]PatternTest),
		resolutions: make(map[string]*resolution.Record),
	}
}

func quarantineKey(projectID, testID string) string {
	return projectID + "\x00" + testID
}

// InsertExecutions implements Store.
func (s *MemStore) InsertExecutions(recs []history.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions = append(s.executions, recs...)
	return nil
}

// ListExecutions implements Store.
func (s *MemStore) ListExecutions(projectID, testName string, from, to time.Time) ([]history.ExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []history.ExecutionRecord
	for _, r := range s.executions {
		if r.ProjectID != projectID || r.TestName != testName {
			continue
		}
		if r.Timestamp.Before(from) || !r.Timestamp.Before(to) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// ListProjectExecutions implements Store.
func (s *MemStore) ListProjectExecutions(projectID string) ([]history.ExecutionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []history.ExecutionRecord
	for _, r := range s.executions {
		if r.ProjectID == projectID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// GetQuarantine implements Store.
func (s *MemStore) GetQuarantine(projectID, testID string) (*quarantine.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.quarantines[quarantineKey(projectID, testID)]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// SaveQuarantine implements Store.
func (s *MemStore) SaveQuarantine(rec *quarantine.Record) error {
	if rec == nil {
		return errors.New("quarantine record is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.quarantines[quarantineKey(rec.ProjectID, rec.TestID)] = &cp
	return nil
}

// AppendQuarantineEvent implements Store.
func (s *MemStore) AppendQuarantineEvent(ev quarantine.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// ListQuarantineEvents implements Store.
func (s *MemStore) ListQuarantineEvents(projectID, testID string) ([]quarantine.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []quarantine.Event
	for _, ev := range s.events {
		if ev.ProjectID == projectID && ev.TestID == testID {
			out = append(out, ev)
		}
	}
	return out, nil
}

// PutPatternTests implements Store.
func (s *MemStore) PutPatternTests(tests []PatternTest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pt := range tests {
		dup := false
		for _, existing := range s.patterns[pt.PatternID] {
			if existing == pt {
				dup = true
				break
			}
		}
		if !dup {
			s.patterns[pt.PatternID] = append(s.patterns[pt.PatternID], pt)
		}
	}
	return nil
}

// ListPatternTests implements Store.
func (s *MemStore) ListPatternTests(patternID string) ([]PatternTest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PatternTest, len(s.patterns[patternID]))
	copy(out, s.patterns[patternID])
	return out, nil
}

// CreateResolution implements Store.
func (s *MemStore) CreateResolution(rec *resolution.Record) error {
	if rec == nil {
		return errors.New("resolution is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.resolutions[rec.ID]; exists {
		return errors.New("resolution already exists: " + rec.ID)
	}
	cp := *rec
	s.resolutions[rec.ID] = &cp
	return nil
}

// GetResolution implements Store.
func (s *MemStore) GetResolution(id string) (*resolution.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.resolutions[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// ListResolutionsByOrg implements Store.
func (s *MemStore) ListResolutionsByOrg(orgID string, since time.Time) ([]*resolution.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*resolution.Record
	for _, rec := range s.resolutions {
		if rec.OrganizationID == orgID && !rec.ResolvedAt.Before(since) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResolvedAt.After(out[j].ResolvedAt) })
	return out, nil
}

// ListDueVerifications implements Store.
func (s *MemStore) ListDueVerifications(now time.Time) ([]*resolution.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*resolution.Record
	for _, rec := range s.resolutions {
		if rec.VerificationStatus == resolution.VerificationPending && !rec.VerifyAfter.After(now) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VerifyAfter.Before(out[j].VerifyAfter) })
	return out, nil
}

// FinalizeVerification implements Store.
func (s *MemStore) FinalizeVerification(id string, status resolution.VerificationStatus,
	verifiedAt time.Time, metrics resolution.EffectivenessMetrics,
	followUpRequired bool, followUpNotes string) (bool, error) {

	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.resolutions[id]
	if !ok {
		return false, errors.New("resolution not found: " + id)
	}
	if rec.VerificationStatus != resolution.VerificationPending {
		return false, nil
	}
	rec.VerificationStatus = status
	at := verifiedAt
	rec.VerifiedAt = &at
	m := metrics
	rec.Effectiveness = &m
	rec.FollowUpRequired = followUpRequired
	rec.FollowUpNotes = followUpNotes
	return true, nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
