// Package rowset tracks selections of dataset rows.
//
// A Set is a 32-bit Roaring Bitmap over row indices in canonical dataset
// order. Iteration is always ascending, so materializing a Set preserves
// the dataset's row order.
package rowset

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2"
)

// Set is a set of row indices.
type Set struct {
	rb *roaring.Bitmap
}

// New creates a new empty row set.
func New() *Set {
	return &Set{rb: roaring.New()}
}

// Add adds a row index to the set.
func (s *Set) Add(row int) {
	s.rb.Add(uint32(row))
}

// Contains checks whether a row index is in the set.
func (s *Set) Contains(row int) bool {
	return s.rb.Contains(uint32(row))
}

// IsEmpty returns true if the set is empty.
func (s *Set) IsEmpty() bool {
	return s.rb.IsEmpty()
}

// Len returns the number of rows in the set.
func (s *Set) Len() int {
	return int(s.rb.GetCardinality())
}

// Clone returns a deep copy of the set.
func (s *Set) Clone() *Set {
	return &Set{rb: s.rb.Clone()}
}

// Rows iterates the set in ascending row order.
func (s *Set) Rows() iter.Seq[int] {
	return func(yield func(int) bool) {
		it := s.rb.Iterator()
		for it.HasNext() {
			if !yield(int(it.Next())) {
				return
			}
		}
	}
}
