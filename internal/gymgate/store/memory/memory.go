// Package memory is an in-process storage backend for tests, dev runs and the
// demo fixture roster. All mutations are applied under one mutex, so a
// counter change and its access record land together.
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gymgate/server/internal/gymgate/access"
	"github.com/gymgate/server/internal/gymgate/store"
)

// Member seeds one person, optionally with an enrollment.
type Member struct {
	Member     access.Member
	Enrollment *access.Enrollment
}

type Store struct {
	mu           sync.RWMutex
	byIdentifier map[string]string // identifier -> member id
	members      map[string]access.Member
	enrollments  map[string]*access.Enrollment // member id -> enrollment
	enrollOwner  map[string]string             // enrollment id -> member id
	records      []store.AccessRecord
}

func New(seed ...Member) *Store {
	s := &Store{
		byIdentifier: make(map[string]string),
		members:      make(map[string]access.Member),
		enrollments:  make(map[string]*access.Enrollment),
		enrollOwner:  make(map[string]string),
	}
	for _, m := range seed {
		s.Put(m)
	}
	return s
}

// Put inserts or replaces a member and its enrollment.
func (s *Store) Put(m Member) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := m.Member.ID
	if prev, ok := s.enrollments[id]; ok {
		delete(s.enrollOwner, prev.ID)
	}
	if old, ok := s.members[id]; ok {
		delete(s.byIdentifier, old.Identifier)
	}

	s.members[id] = m.Member
	s.byIdentifier[strings.TrimSpace(m.Member.Identifier)] = id
	if m.Enrollment != nil {
		en := *m.Enrollment
		s.enrollments[id] = &en
		s.enrollOwner[en.ID] = id
	} else {
		delete(s.enrollments, id)
	}
}

// DeleteEnrollment removes an enrollment, leaving its records in place.
func (s *Store) DeleteEnrollment(enrollmentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.enrollOwner[enrollmentID]; ok {
		delete(s.enrollments, owner)
		delete(s.enrollOwner, enrollmentID)
	}
}

// Enrollment returns a copy of the enrollment with the given id.
func (s *Store) Enrollment(enrollmentID string) (access.Enrollment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.enrollOwner[enrollmentID]
	if !ok {
		return access.Enrollment{}, false
	}
	return *s.enrollments[owner], true
}

// Has reports whether a member with the identifier exists.
func (s *Store) Has(identifier string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byIdentifier[strings.TrimSpace(identifier)]
	return ok
}

// HasMembership reports whether the enrollment id exists.
func (s *Store) HasMembership(enrollmentID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.enrollOwner[enrollmentID]
	return ok
}

// Records returns a copy of every record in insertion order.
func (s *Store) Records() []store.AccessRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.AccessRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *Store) lastRecordLocked(enrollmentID string) *store.AccessRecord {
	var last *store.AccessRecord
	for i := range s.records {
		r := &s.records[i]
		if r.MembershipID != enrollmentID {
			continue
		}
		if last == nil || !r.At.Before(last.At) {
			last = r
		}
	}
	return last
}

func sortNewestFirst(recs []store.AccessRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].At.After(recs[j].At)
	})
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
