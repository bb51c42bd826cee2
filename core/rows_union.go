package core

import "sort"

// Interval is an inclusive range of item ids.
type Interval struct {
	Begin, End int
}

// RowsUnion stores a set of integer ids as sorted, disjoint, non-adjacent
// inclusive intervals. Ids appended densely and in increasing order collapse
// into a handful of intervals, which keeps per-cell membership small for
// large uniform geometry sets.
type RowsUnion struct {
	intervals []Interval
}

// NewRowsUnion returns a set holding the single range [begin, end].
func NewRowsUnion(begin, end int) *RowsUnion {
	r := &RowsUnion{}
	r.AddRange(begin, end)
	return r
}

// Add inserts a single id.
func (r *RowsUnion) Add(id int) {
	n := len(r.intervals)
	// Fast path: monotonic appends extend the last interval.
	if n > 0 {
		last := &r.intervals[n-1]
		if id >= last.Begin && id <= last.End {
			return
		}
		if id == last.End+1 {
			last.End = id
			return
		}
		if id > last.End+1 {
			r.intervals = append(r.intervals, Interval{Begin: id, End: id})
			return
		}
	}
	r.AddRange(id, id)
}

// AddRange inserts every id of [begin, end]. An inverted range is ignored.
func (r *RowsUnion) AddRange(begin, end int) {
	if begin > end {
		return
	}
	// First interval that could touch [begin, end] (its End reaches begin-1).
	lo := sort.Search(len(r.intervals), func(i int) bool {
		return r.intervals[i].End >= begin-1
	})
	hi := lo
	for hi < len(r.intervals) && r.intervals[hi].Begin <= end+1 {
		if r.intervals[hi].Begin < begin {
			begin = r.intervals[hi].Begin
		}
		if r.intervals[hi].End > end {
			end = r.intervals[hi].End
		}
		hi++
	}
	merged := Interval{Begin: begin, End: end}
	if lo == hi {
		r.intervals = append(r.intervals, Interval{})
		copy(r.intervals[lo+1:], r.intervals[lo:])
		r.intervals[lo] = merged
		return
	}
	r.intervals[lo] = merged
	r.intervals = append(r.intervals[:lo+1], r.intervals[hi:]...)
}

// Contains reports whether id is a member.
func (r *RowsUnion) Contains(id int) bool {
	i := sort.Search(len(r.intervals), func(i int) bool { return r.intervals[i].End >= id })
	return i < len(r.intervals) && r.intervals[i].Begin <= id
}

// IsEmpty reports whether the set holds no id.
func (r *RowsUnion) IsEmpty() bool { return r == nil || len(r.intervals) == 0 }

// Len returns the number of ids in the set.
func (r *RowsUnion) Len() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, iv := range r.intervals {
		n += iv.End - iv.Begin + 1
	}
	return n
}

// Intervals returns the sorted interval list. Callers must not modify it.
func (r *RowsUnion) Intervals() []Interval {
	if r == nil {
		return nil
	}
	return r.intervals
}

// mergeIntervals unions several sorted interval lists into one sorted,
// disjoint, non-adjacent list.
func mergeIntervals(lists [][]Interval) []Interval {
	total := 0
	for _, l := range lists {
		total += len(l)
	}
	if total == 0 {
		return nil
	}
	all := make([]Interval, 0, total)
	for _, l := range lists {
		all = append(all, l...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Begin < all[j].Begin })
	out := all[:1]
	for _, iv := range all[1:] {
		last := &out[len(out)-1]
		if iv.Begin <= last.End+1 {
			if iv.End > last.End {
				last.End = iv.End
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// RowIterator walks a union of intervals id by id without materialising the
// ids. It is restartable with Reset.
type RowIterator struct {
	intervals []Interval
	idx       int
	cursor    int
}

func newRowIterator(intervals []Interval) *RowIterator {
	it := &RowIterator{intervals: intervals}
	it.Reset()
	return it
}

// Reset rewinds the iterator to the first id.
func (it *RowIterator) Reset() {
	it.idx = 0
	if len(it.intervals) > 0 {
		it.cursor = it.intervals[0].Begin
	}
}

// Next returns the next id in ascending order; ok is false once exhausted.
func (it *RowIterator) Next() (id int, ok bool) {
	if it.idx >= len(it.intervals) {
		return 0, false
	}
	id = it.cursor
	if it.cursor < it.intervals[it.idx].End {
		it.cursor++
	} else {
		it.idx++
		if it.idx < len(it.intervals) {
			it.cursor = it.intervals[it.idx].Begin
		}
	}
	return id, true
}

// Count returns the total number of ids the iterator yields from the start.
func (it *RowIterator) Count() int {
	n := 0
	for _, iv := range it.intervals {
		n += iv.End - iv.Begin + 1
	}
	return n
}

// Collect drains a fresh pass of the iterator into a slice.
func (it *RowIterator) Collect() []int {
	it.Reset()
	out := make([]int, 0, it.Count())
	for id, ok := it.Next(); ok; id, ok = it.Next() {
		out = append(out, id)
	}
	it.Reset()
	return out
}
