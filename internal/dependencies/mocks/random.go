package mocks

import (
	"github.com/nwrussi/openquiz-rooms/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing.
// Queued results are returned in order; an exhausted queue yields zero values.
type MockRandom struct {
	IntnResults []int
	intnIndex   int

	StringResults []string
	stringIndex   int

	PickResults []string
	pickIndex   int
}

var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining
func (r *MockRandom) Intn(n int) int {
	if r.intnIndex >= len(r.IntnResults) {
		return 0
	}
	result := r.IntnResults[r.intnIndex]
	r.intnIndex++
	return result
}

// String returns the next queued result, or empty string if none remaining
func (r *MockRandom) String(length int, alphabet string) string {
	if r.stringIndex >= len(r.StringResults) {
		return ""
	}
	result := r.StringResults[r.stringIndex]
	r.stringIndex++
	return result
}

// Pick returns the next queued result, or the first option if none remaining
func (r *MockRandom) Pick(options []string) string {
	if r.pickIndex >= len(r.PickResults) {
		if len(options) == 0 {
			return ""
		}
		return options[0]
	}
	result := r.PickResults[r.pickIndex]
	r.pickIndex++
	return result
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.IntnResults = append(r.IntnResults, values...)
}

// QueueString adds values to the String result queue
func (r *MockRandom) QueueString(values ...string) {
	r.StringResults = append(r.StringResults, values...)
}

// QueuePick adds values to the Pick result queue
func (r *MockRandom) QueuePick(values ...string) {
	r.PickResults = append(r.PickResults, values...)
}
