package usecases

// MarkerDiff is the set of marker changes needed to move from one marker set
// to another.
type MarkerDiff struct {
	ToAdd    []string
	ToRemove []string
	ToKeep   []string
}

// Empty reports whether the diff changes nothing on the surface.
func (d MarkerDiff) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// Reconcile diffs two marker id sets. ToAdd and ToKeep follow the order of
// next, ToRemove the order of prev. Duplicate ids are counted once.
func Reconcile(prev, next []string) MarkerDiff {
	inPrev := make(map[string]struct{}, len(prev))
	for _, id := range prev {
		inPrev[id] = struct{}{}
	}
	inNext := make(map[string]struct{}, len(next))

	var d MarkerDiff
	for _, id := range next {
		if _, dup := inNext[id]; dup {
			continue
		}
		inNext[id] = struct{}{}
		if _, ok := inPrev[id]; ok {
			d.ToKeep = append(d.ToKeep, id)
		} else {
			d.ToAdd = append(d.ToAdd, id)
		}
	}

	removed := make(map[string]struct{})
	for _, id := range prev {
		if _, ok := inNext[id]; ok {
			continue
		}
		if _, dup := removed[id]; dup {
			continue
		}
		removed[id] = struct{}{}
		d.ToRemove = append(d.ToRemove, id)
	}
	return d
}
