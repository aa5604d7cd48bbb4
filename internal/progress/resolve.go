package progress

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Resolve reconciles local and remote progress. A component on one side only is kept as is.
// On both sides the later LastVisited wins outright. An exact tie merges field by field:
// Score, TimeSpent and Attempts take the max and Completed is OR-ed.
// Conflicts are returned sorted by component ID.
func Resolve(local, remote map[string]Record) Result {
	ids := mapset.NewThreadUnsafeSetWithSize[string](len(local) + len(remote))
	for id := range local {
		ids.Add(id)
	}
	for id := range remote {
		ids.Add(id)
	}

	res := Result{
		Resolved:  make(map[string]Record, ids.Cardinality()),
		Conflicts: []Conflict{},
	}

	sorted := ids.ToSlice()
	slices.Sort(sorted)

	for _, id := range sorted {
		l, inLocal := local[id]
		r, inRemote := remote[id]

		switch {
		case inLocal && !inRemote:
			res.Resolved[id] = l
		case inRemote && !inLocal:
			res.Resolved[id] = r
		case l.LastVisited.After(r.LastVisited):
			res.Resolved[id] = l
			res.Conflicts = append(res.Conflicts, Conflict{Local: l, Remote: r, Resolution: ResolutionLocal})
		case r.LastVisited.After(l.LastVisited):
			res.Resolved[id] = r
			res.Conflicts = append(res.Conflicts, Conflict{Local: l, Remote: r, Resolution: ResolutionRemote})
		default:
			res.Resolved[id] = merge(l, r)
			res.Conflicts = append(res.Conflicts, Conflict{Local: l, Remote: r, Resolution: ResolutionMerge})
		}
	}

	return res
}

// merge combines two records with equal LastVisited. Local overrides remote, then the
// monotonic fields take the max of both sides.
func merge(l, r Record) Record {
	m := l
	m.TimeSpent = max(l.TimeSpent, r.TimeSpent)
	m.Attempts = max(l.Attempts, r.Attempts)
	m.Completed = l.Completed || r.Completed

	// a score absent on both sides stays absent
	if l.Score != nil || r.Score != nil {
		score := max(deref(l.Score), deref(r.Score))
		m.Score = &score
	}
	return m
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
