package survey

import "fmt"

// Issue categories in display order.
const (
	CategoryRecruitmentRetention   = "recruitment_retention"
	CategoryOrganizations          = "organizations"
	CategoryCultureLeadership      = "culture_leadership"
	CategoryEvaluationCompensation = "evaluation_compensation"
	CategoryUpskilling             = "upskilling"
	CategoryOthers                 = "others"
)

var Categories = []string{
	CategoryRecruitmentRetention,
	CategoryOrganizations,
	CategoryCultureLeadership,
	CategoryEvaluationCompensation,
	CategoryUpskilling,
	CategoryOthers,
}

var categoryLabels = map[string]string{
	CategoryRecruitmentRetention:   "Recruitment & Retention",
	CategoryOrganizations:          "Organizations",
	CategoryCultureLeadership:      "Culture & Leadership",
	CategoryEvaluationCompensation: "Evaluation & Compensation",
	CategoryUpskilling:             "Upskilling",
	CategoryOthers:                 "Others",
}

func KnownCategory(c string) bool {
	_, ok := categoryLabels[c]
	return ok
}

func CategoryLabel(c string) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return categoryLabels[CategoryOthers]
}

type Issue struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
	Order    int    `json:"order"`
}

type IssueGroup struct {
	Category string  `json:"category"`
	Label    string  `json:"label"`
	Issues   []Issue `json:"issues"`
}

// GroupIssues buckets issues by category in taxonomy order.
// Unknown categories are shown with others; the issue keeps its own category value.
func GroupIssues(issues []Issue) []IssueGroup {
	buckets := map[string][]Issue{}
	for _, is := range issues {
		key := is.Category
		if !KnownCategory(key) {
			key = CategoryOthers
		}
		buckets[key] = append(buckets[key], is)
	}
	var out []IssueGroup
	for _, c := range Categories {
		if len(buckets[c]) == 0 {
			continue
		}
		out = append(out, IssueGroup{Category: c, Label: CategoryLabel(c), Issues: buckets[c]})
	}
	return out
}

// Toggle removes id when an element has the same string form, otherwise appends id unchanged.
func Toggle(ids []any, id any) []any {
	key := fmt.Sprint(id)
	for i, v := range ids {
		if fmt.Sprint(v) == key {
			out := make([]any, 0, len(ids)-1)
			out = append(out, ids[:i]...)
			return append(out, ids[i+1:]...)
		}
	}
	out := make([]any, len(ids), len(ids)+1)
	copy(out, ids)
	return append(out, id)
}

// Toggle applies the package Toggle to the canonical string ids of a response.
func (ids IssueIDs) Toggle(id any) IssueIDs {
	vals := make([]any, len(ids))
	for i, v := range ids {
		vals[i] = v
	}
	toggled := Toggle(vals, fmt.Sprint(id))
	out := make(IssueIDs, len(toggled))
	for i, v := range toggled {
		out[i] = fmt.Sprint(v)
	}
	return out
}
