package survey

import (
	"fmt"
	"sort"
	"strconv"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleComparesAsStrings(t *testing.T) {
	ids := []any{1, "2"}
	ids = Toggle(ids, "1")
	assert.Equal(t, []any{"2"}, ids)
	ids = Toggle(ids, 2)
	assert.Empty(t, ids)
	ids = Toggle(ids, 3)
	assert.Equal(t, []any{3}, ids)
}

func TestToggleDoesNotMutateInput(t *testing.T) {
	in := []any{"a", "b"}
	_ = Toggle(in, "a")
	assert.Equal(t, []any{"a", "b"}, in)
}

func TestIssueIDsToggle(t *testing.T) {
	ids := IssueIDs{"4"}
	ids = ids.Toggle(5)
	assert.Equal(t, IssueIDs{"4", "5"}, ids)
	ids = ids.Toggle("4")
	assert.Equal(t, IssueIDs{"5"}, ids)
}

func membership(ids []any) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		out = append(out, fmt.Sprint(v))
	}
	sort.Strings(out)
	return out
}

func TestToggleTwiceRestoresMembership(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("toggle twice is identity on membership", prop.ForAll(
		func(base []int, id int, asString bool) bool {
			seen := map[int]bool{}
			var ids []any
			for _, b := range base {
				if seen[b] {
					continue
				}
				seen[b] = true
				ids = append(ids, b)
			}
			var candidate any = id
			if asString {
				candidate = strconv.Itoa(id)
			}
			once := Toggle(ids, candidate)
			twice := Toggle(once, candidate)
			return assert.ObjectsAreEqual(membership(ids), membership(twice))
		},
		gen.SliceOf(gen.IntRange(0, 20)),
		gen.IntRange(0, 20),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestGroupIssuesKeepsUnknownCategory(t *testing.T) {
	groups := GroupIssues([]Issue{
		{ID: "1", Category: CategoryUpskilling, Name: "Training budget"},
		{ID: "2", Category: "legal", Name: "Labor law"},
		{ID: "3", Category: CategoryRecruitmentRetention, Name: "Turnover"},
		{ID: "4", Category: CategoryOthers, Name: "Misc"},
	})
	require.Len(t, groups, 3)
	assert.Equal(t, CategoryRecruitmentRetention, groups[0].Category)
	assert.Equal(t, CategoryUpskilling, groups[1].Category)
	assert.Equal(t, CategoryOthers, groups[2].Category)
	require.Len(t, groups[2].Issues, 2)
	assert.Equal(t, "legal", groups[2].Issues[0].Category)
	assert.Equal(t, "Others", CategoryLabel("legal"))
}
