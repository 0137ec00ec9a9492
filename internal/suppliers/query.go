package suppliers

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// FilterAll disables a filter dimension.
const FilterAll = "all"

// SortOrder selects the projection order.
type SortOrder string

const (
	SortNone          SortOrder = ""
	SortNameAsc       SortOrder = "name_asc"
	SortNameDesc      SortOrder = "name_desc"
	SortSubmittedDesc SortOrder = "submitted_desc"
	SortSubmittedAsc  SortOrder = "submitted_asc"
)

// ParseSortOrder also accepts the dashboard values az, za, date-newest and date-oldest.
func ParseSortOrder(raw string) (SortOrder, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return SortNone, true
	case "name_asc", "az":
		return SortNameAsc, true
	case "name_desc", "za":
		return SortNameDesc, true
	case "submitted_desc", "date-newest", "newest":
		return SortSubmittedDesc, true
	case "submitted_asc", "date-oldest", "oldest":
		return SortSubmittedAsc, true
	default:
		return "", false
	}
}

// Query is a dashboard filter and sort specification. Empty strings and
// FilterAll leave a dimension unfiltered.
type Query struct {
	Search        string    `json:"search,omitempty"`
	RiskCategory  string    `json:"riskCategory,omitempty"`
	Country       string    `json:"country,omitempty"`
	Industry      string    `json:"industry,omitempty"`
	Certification string    `json:"certification,omitempty"`
	Sort          SortOrder `json:"sort,omitempty"`
}

// Key is a canonical string for the query, used to coalesce identical requests.
func (q Query) Key() string {
	return strings.Join([]string{
		strings.ToLower(strings.TrimSpace(q.Search)),
		activeFilter(q.RiskCategory),
		activeFilter(q.Country),
		activeFilter(q.Industry),
		activeFilter(q.Certification),
		string(q.Sort),
	}, "|")
}

func activeFilter(v string) string {
	v = strings.TrimSpace(v)
	if strings.EqualFold(v, FilterAll) {
		return ""
	}
	return v
}

// Project filters and sorts records into a new slice. The input is never
// modified. Filters are ANDed; the search term is ORed over company name,
// email and contact person. Sorting is stable so ties keep input order.
func Project(records []Supplier, q Query) []Supplier {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	risk := activeFilter(q.RiskCategory)
	country := activeFilter(q.Country)
	industry := activeFilter(q.Industry)
	cert := activeFilter(q.Certification)

	out := make([]Supplier, 0, len(records))
	for _, r := range records {
		if search != "" &&
			!strings.Contains(strings.ToLower(r.CompanyName), search) &&
			!strings.Contains(strings.ToLower(r.Email), search) &&
			!strings.Contains(strings.ToLower(r.ContactPerson), search) {
			continue
		}
		if risk != "" && !strings.EqualFold(string(r.RiskCategory), risk) {
			continue
		}
		if country != "" && r.Country != country {
			continue
		}
		if industry != "" && r.Industry != industry {
			continue
		}
		if cert != "" && !containsString(r.Certifications, cert) {
			continue
		}
		out = append(out, r.Clone())
	}

	switch q.Sort {
	case SortNameAsc, SortNameDesc:
		// collators are not safe for concurrent use
		col := collate.New(language.English)
		desc := q.Sort == SortNameDesc
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return col.CompareString(out[j].CompanyName, out[i].CompanyName) < 0
			}
			return col.CompareString(out[i].CompanyName, out[j].CompanyName) < 0
		})
	case SortSubmittedDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		})
	case SortSubmittedAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		})
	}
	return out
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// Stats are the dashboard counters.
type Stats struct {
	Total  int `json:"total"`
	Low    int `json:"lowRisk"`
	Medium int `json:"mediumRisk"`
	High   int `json:"highRisk"`
}

// Summarize counts records per risk category.
func Summarize(records []Supplier) Stats {
	st := Stats{Total: len(records)}
	for _, r := range records {
		switch r.RiskCategory {
		case RiskLow:
			st.Low++
		case RiskMedium:
			st.Medium++
		case RiskHigh:
			st.High++
		}
	}
	return st
}

// Facets lists the distinct values the dashboard filters can offer.
type Facets struct {
	Countries      []string `json:"countries"`
	Industries     []string `json:"industries"`
	Certifications []string `json:"certifications"`
}

// CollectFacets returns sorted distinct countries, industries and certifications.
func CollectFacets(records []Supplier) Facets {
	countries := map[string]struct{}{}
	industries := map[string]struct{}{}
	certs := map[string]struct{}{}
	for _, r := range records {
		if r.Country != "" {
			countries[r.Country] = struct{}{}
		}
		if r.Industry != "" {
			industries[r.Industry] = struct{}{}
		}
		for _, c := range r.Certifications {
			certs[c] = struct{}{}
		}
	}
	return Facets{
		Countries:      sortedKeys(countries),
		Industries:     sortedKeys(industries),
		Certifications: sortedKeys(certs),
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	collate.New(language.English).SortStrings(out)
	return out
}
