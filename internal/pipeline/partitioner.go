package pipeline

import (
	"sort"

	"panelfit/domain/panel"
)

// Partition splits a table into disjoint (country, period) groups. Every
// row lands in exactly one group and keeps its relative order. An empty
// table yields no groups.
func Partition(t *panel.Table) map[panel.GroupKey]panel.Group {
	groups := make(map[panel.GroupKey]panel.Group)
	if t.Len() == 0 {
		return groups
	}

	buckets := make(map[panel.GroupKey][]panel.Observation)
	for _, row := range t.Rows {
		key := panel.GroupKey{Country: row.Country, Period: row.Period}
		buckets[key] = append(buckets[key], row)
	}
	for key, rows := range buckets {
		groups[key] = panel.NewGroup(key, t.Schema, rows)
	}
	return groups
}

// SortedKeys returns the group keys ordered by country, then period.
func SortedKeys(groups map[panel.GroupKey]panel.Group) []panel.GroupKey {
	keys := make([]panel.GroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
