package resolution

import (
	"sort"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Reasons an edge of the match graph is not used for clustering
const (
	RejectDistinctClusters = "clusters already distinct"
	RejectSourceConflict   = "cluster already holds a record from the same source"
)

// RejectedMatch is a duplicate match that clustering declined to apply
type RejectedMatch struct {
	Match  models.DuplicateMatch `json:"match"`
	Reason string                `json:"reason"`
}

// Clustering is the outcome of grouping the match graph
type Clustering struct {
	Groups   [][]int                 // Member indexes, ascending, ordered by first member
	Accepted []models.DuplicateMatch // Matches that joined or confirmed a group
	Rejected []RejectedMatch
}

// Clusterer groups pairwise matches with union-find. Matches are applied highest
// confidence first (ties by index pair). A match is rejected when both sides already
// belong to different multi-record groups, or when joining would put two records of the
// same source into one group.
type Clusterer struct{}

// NewClusterer creates a new Clusterer
func NewClusterer() *Clusterer {
	return &Clusterer{}
}

// Cluster groups n records given the matches found between them. Every index in [0, n)
// appears in exactly one group.
func (c *Clusterer) Cluster(events []models.EventRecord, matches []models.DuplicateMatch) Clustering {
	n := len(events)
	uf := newUnionFind(n)
	sources := make([]map[models.Source]bool, n)
	for i := range events {
		sources[i] = map[models.Source]bool{events[i].Source: true}
	}

	edges := append([]models.DuplicateMatch(nil), matches...)
	sort.SliceStable(edges, func(a, b int) bool {
		if edges[a].Confidence != edges[b].Confidence {
			return edges[a].Confidence > edges[b].Confidence
		}
		if edges[a].Index1 != edges[b].Index1 {
			return edges[a].Index1 < edges[b].Index1
		}
		return edges[a].Index2 < edges[b].Index2
	})

	var out Clustering
	for _, m := range edges {
		ra, rb := uf.find(m.Index1), uf.find(m.Index2)
		switch {
		case ra == rb:
			out.Accepted = append(out.Accepted, m)
			continue
		case uf.size[ra] > 1 && uf.size[rb] > 1:
			out.Rejected = append(out.Rejected, RejectedMatch{Match: m, Reason: RejectDistinctClusters})
			continue
		case overlaps(sources[ra], sources[rb]):
			out.Rejected = append(out.Rejected, RejectedMatch{Match: m, Reason: RejectSourceConflict})
			continue
		}

		root, child := uf.union(ra, rb)
		for s := range sources[child] {
			sources[root][s] = true
		}
		sources[child] = nil
		out.Accepted = append(out.Accepted, m)
	}

	// Report accepted matches in scan order
	sort.SliceStable(out.Accepted, func(a, b int) bool {
		if out.Accepted[a].Index1 != out.Accepted[b].Index1 {
			return out.Accepted[a].Index1 < out.Accepted[b].Index1
		}
		return out.Accepted[a].Index2 < out.Accepted[b].Index2
	})

	byRoot := make(map[int]int)
	for i := 0; i < n; i++ {
		root := uf.find(i)
		pos, ok := byRoot[root]
		if !ok {
			pos = len(out.Groups)
			byRoot[root] = pos
			out.Groups = append(out.Groups, nil)
		}
		out.Groups[pos] = append(out.Groups[pos], i)
	}
	return out
}

func overlaps(a, b map[models.Source]bool) bool {
	for s := range a {
		if b[s] {
			return true
		}
	}
	return false
}

type unionFind struct {
	parent []int
	size   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), size: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
		uf.size[i] = 1
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union joins two roots and returns (surviving root, absorbed root)
func (u *unionFind) union(a, b int) (int, int) {
	if u.size[a] < u.size[b] {
		a, b = b, a
	}
	u.parent[b] = a
	u.size[a] += u.size[b]
	return a, b
}
