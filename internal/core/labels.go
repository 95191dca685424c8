package core

import (
	"cmp"
	"encoding/json"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// ResultLabel is one entry of the result category vocabulary.
type ResultLabel struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// ResultLabels is an ordered, immutable key → label mapping.
type ResultLabels struct {
	entries []ResultLabel
}

var defaultResultLabels = []ResultLabel{
	{Key: "first_place", Label: "First Place"},
	{Key: "second_place", Label: "Second Place"},
	{Key: "third_place", Label: "Third Place"},
	{Key: "fourth_place", Label: "Fourth Place"},
	{Key: "fifth_place", Label: "Fifth Place"},
	{Key: "sixth_place", Label: "Sixth Place"},
	{Key: "consolation", Label: "Consolation Prize"},
	{Key: "special_mention", Label: "Special Mention"},
	{Key: "participation", Label: "Participation"},
	{Key: "disqualified", Label: "Disqualified"},
	{Key: "absent", Label: "Absent"},
}

// DefaultResultLabels returns the fixed default vocabulary.
func DefaultResultLabels() ResultLabels {
	return ResultLabels{entries: slices.Clone(defaultResultLabels)}
}

// Entries returns a copy of the entries in vocabulary order.
func (l ResultLabels) Entries() []ResultLabel {
	return slices.Clone(l.entries)
}

// Label returns the label for key.
func (l ResultLabels) Label(key string) (string, bool) {
	for _, e := range l.entries {
		if e.Key == key {
			return e.Label, true
		}
	}
	return "", false
}

func (l ResultLabels) Len() int {
	return len(l.entries)
}

func (l ResultLabels) MarshalJSON() ([]byte, error) {
	if l.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.entries)
}

// MergeLabelOverrides returns a new mapping where each override relabels the
// existing key it matches after trimming and case folding. Overrides with an
// unknown key or a blank label are ignored, so the vocabulary never grows.
// Overrides are applied in ascending SortOrder; a later override of the same
// key wins.
func MergeLabelOverrides(base ResultLabels, overrides []LabelOverride) ResultLabels {
	merged := base.Entries()
	if len(overrides) == 0 {
		return ResultLabels{entries: merged}
	}

	fold := cases.Fold()
	index := make(map[string]int, len(merged))
	for i, e := range merged {
		index[fold.String(strings.TrimSpace(e.Key))] = i
	}

	ordered := slices.Clone(overrides)
	slices.SortStableFunc(ordered, func(a, b LabelOverride) int {
		return cmp.Compare(a.SortOrder, b.SortOrder)
	})

	for _, o := range ordered {
		i, ok := index[fold.String(strings.TrimSpace(o.Key))]
		if !ok {
			continue
		}
		label := strings.TrimSpace(o.Label)
		if label == "" {
			continue
		}
		merged[i].Label = label
	}
	return ResultLabels{entries: merged}
}
