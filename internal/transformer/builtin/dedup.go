package builtin

import (
	"sort"
	"strings"

	"cyberetl/internal/dataset"
)

// Duplicate-resolution policies for DeDup.
const (
	KeepFirst    = "keep-first"
	KeepLast     = "keep-last"
	MostComplete = "most-complete"
)

// DeDup collapses records sharing the same key (the Keys fields joined as
// strings) and keeps one winner per key:
//
//   - keep-first: the earliest occurrence
//   - keep-last: the latest occurrence (default)
//   - most-complete: the record with the most non-null fields, PreferFields
//     weighing extra; ties go to the later record
//
// Winners keep their original relative order. Records lacking a key field
// pass through after the winners.
type DeDup struct {
	Keys         []string
	Policy       string
	PreferFields []string
}

type dedupSlot struct {
	rec   dataset.Record
	index int
	score int
}

func (d DeDup) Apply(in []dataset.Record) []dataset.Record {
	if len(in) == 0 || len(d.Keys) == 0 {
		return in
	}
	policy := strings.ToLower(strings.TrimSpace(d.Policy))
	if policy == "" {
		policy = KeepLast
	}
	prefer := make(map[string]struct{}, len(d.PreferFields))
	for _, f := range d.PreferFields {
		prefer[f] = struct{}{}
	}

	winners := make(map[string]dedupSlot, len(in))
	var unkeyed []dataset.Record
	for i, r := range in {
		key, ok := d.keyOf(r)
		if !ok {
			unkeyed = append(unkeyed, r)
			continue
		}
		prev, seen := winners[key]
		switch policy {
		case KeepFirst:
			if !seen {
				winners[key] = dedupSlot{rec: r, index: i}
			}
		case MostComplete:
			s := dedupSlot{rec: r, index: i, score: completeness(r, prefer)}
			if !seen || s.score >= prev.score {
				winners[key] = s
			}
		default:
			winners[key] = dedupSlot{rec: r, index: i}
		}
	}

	slots := make([]dedupSlot, 0, len(winners))
	for _, s := range winners {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].index < slots[j].index })

	out := make([]dataset.Record, 0, len(slots)+len(unkeyed))
	for _, s := range slots {
		out = append(out, s.rec)
	}
	return append(out, unkeyed...)
}

func (d DeDup) keyOf(r dataset.Record) (string, bool) {
	var b strings.Builder
	for i, k := range d.Keys {
		v, ok := r[k]
		if !ok {
			return "", false
		}
		if i > 0 {
			b.WriteByte('\x1f')
		}
		if v == nil {
			b.WriteByte('\x00')
			continue
		}
		b.WriteString(dataset.AsString(v))
	}
	return b.String(), true
}

// completeness counts non-null fields; preferred fields add a bonus that
// never outweighs one ordinary field.
func completeness(r dataset.Record, prefer map[string]struct{}) int {
	score, bonus := 0, 0
	for k, v := range r {
		if dataset.IsNull(v) {
			continue
		}
		score++
		if _, ok := prefer[k]; ok {
			bonus++
		}
	}
	return score*10 + bonus
}
