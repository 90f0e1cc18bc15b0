// Package catalog holds the static course and plan reference data. The
// ledger never stores this; checkout and access checks read it directly.
package catalog

import "sort"

// FreePreviewLessons is the number of leading lessons in every course that
// are viewable without any entitlement.
const FreePreviewLessons = 2

type Course struct {
	Slug         string `json:"slug"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	Price        int64  `json:"price"` // cents
	TotalLessons int    `json:"total_lessons"`
	Level        string `json:"level"`
	Category     string `json:"category"`
}

type Plan struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Amount int64  `json:"amount"` // cents per month
}

var courses = []Course{
	{
		Slug:         "practical-web-security",
		Title:        "Practical Web Security",
		Description:  "Threat modeling, authentication pitfalls, and the OWASP Top 10 applied to real codebases across twelve hands-on lessons.",
		Price:        4900,
		TotalLessons: 12,
		Level:        "beginner",
		Category:     "security",
	},
	{
		Slug:         "cloud-incident-response",
		Title:        "Cloud Incident Response",
		Description:  "Detecting, triaging, and recovering from compromises in AWS and GCP environments, from log forensics to postmortems.",
		Price:        5900,
		TotalLessons: 10,
		Level:        "intermediate",
		Category:     "operations",
	},
	{
		Slug:         "secure-api-design",
		Title:        "Secure API Design",
		Description:  "Designing authorization models, rate limits, and webhook contracts that survive hostile clients.",
		Price:        3900,
		TotalLessons: 8,
		Level:        "intermediate",
		Category:     "engineering",
	},
}

// Only paid tiers can be checked out; the free tier is the absence of a
// subscription, not a product.
var plans = map[string]Plan{
	"premium":    {ID: "premium", Name: "Premium", Amount: 1900},
	"enterprise": {ID: "enterprise", Name: "Enterprise", Amount: 14900},
}

// Courses returns the full course list.
func Courses() []Course {
	out := make([]Course, len(courses))
	copy(out, courses)
	return out
}

// Plans returns the purchasable plans sorted by monthly amount.
func Plans() []Plan {
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Amount < out[j].Amount })
	return out
}

// FindCourse returns the course for slug, or nil if unknown.
func FindCourse(slug string) *Course {
	for i := range courses {
		if courses[i].Slug == slug {
			c := courses[i]
			return &c
		}
	}
	return nil
}

// FindPlan returns the purchasable plan for id, or nil if unknown.
func FindPlan(id string) *Plan {
	p, ok := plans[id]
	if !ok {
		return nil
	}
	return &p
}
