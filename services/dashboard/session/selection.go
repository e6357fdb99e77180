package session

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Selection is an ordered set of feature ids. Every update returns a new
// value; the receiver is never modified.
type Selection struct {
	ids []int64
}

// NewSelection builds a selection, dropping duplicates but keeping the
// first occurrence order.
func NewSelection(ids ...int64) Selection {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return Selection{ids: out}
}

// IDs returns a copy of the ids in selection order.
func (s Selection) IDs() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of selected ids.
func (s Selection) Len() int { return len(s.ids) }

// Contains reports membership.
func (s Selection) Contains(id int64) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

// Toggle removes id if present and appends it otherwise.
func (s Selection) Toggle(id int64) Selection {
	out := make([]int64, 0, len(s.ids)+1)
	found := false
	for _, v := range s.ids {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, id)
	}
	return Selection{ids: out}
}

// Last returns the most recently added id.
func (s Selection) Last() (int64, bool) {
	if len(s.ids) == 0 {
		return 0, false
	}
	return s.ids[len(s.ids)-1], true
}

// MarshalJSON encodes the selection as an array of ids.
func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

// UnmarshalJSON decodes an array of ids.
func (s *Selection) UnmarshalJSON(b []byte) error {
	var ids []int64
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*s = NewSelection(ids...)
	return nil
}

// TooltipPrefix precedes the feature id in a flowpath tooltip.
const TooltipPrefix = "wb-"

// ParseTooltip extracts the feature id from a map tooltip such as
// "ID: wb-101\nTo ID: nex-102\n". The id runs from the prefix to the next
// line break. ok is false when the prefix or delimiter is missing or the
// text between them is not an integer.
func ParseTooltip(tooltip string) (int64, bool) {
	start := strings.Index(tooltip, TooltipPrefix)
	if start < 0 {
		return 0, false
	}
	start += len(TooltipPrefix)
	end := strings.Index(tooltip[start:], "\n")
	if end < 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSpace(tooltip[start:start+end]), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
