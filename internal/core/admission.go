package core

import (
	"sort"
	"sync"
	"time"
)

// AdmissionLocks serializes admission decisions that share a student, an
// instructor or a class type on the same day. It only guards a single
// process; separate instances sharing a store can still race.
type AdmissionLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewAdmissionLocks creates an empty lock table.
func NewAdmissionLocks() *AdmissionLocks {
	return &AdmissionLocks{locks: make(map[string]*keyLock)}
}

// AdmissionKeys returns the lock keys a proposal contends on.
func AdmissionKeys(p Proposal, rules Rules) []string {
	day, _ := rules.DayBounds(p.Start)
	return []string{
		"student:" + p.StudentID,
		"instructor:" + p.InstructorID,
		"classtype:" + p.ClassType + ":" + day.Format(time.DateOnly),
	}
}

// Lock acquires every key in sorted order and returns the matching unlock.
// A nil *AdmissionLocks is valid and locks nothing.
func (l *AdmissionLocks) Lock(keys ...string) func() {
	if l == nil || len(keys) == 0 {
		return func() {}
	}

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	sorted = dedupe(sorted)

	held := make([]*keyLock, 0, len(sorted))
	for _, k := range sorted {
		kl := l.acquire(k)
		kl.mu.Lock()
		held = append(held, kl)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()
			l.release(sorted[i])
		}
	}
}

func (l *AdmissionLocks) acquire(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *AdmissionLocks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl := l.locks[key]
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

func dedupe(sorted []string) []string {
	out := sorted[:0]
	for i, s := range sorted {
		if i == 0 || s != sorted[i-1] {
			out = append(out, s)
		}
	}
	return out
}
