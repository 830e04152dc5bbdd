package normalize

import (
	"math"

	"github.com/outreach-mate/outreach-cli/internal/model"
)

// Strings shorter than this are treated as empty for scoring: a two-word
// fragment is not meaningful content.
const minMeaningfulLen = 10

// maxScoredContacts caps how many contacts contribute to the score.
const maxScoredContacts = 5

type weightedField struct {
	weight int
	filled func() bool
}

func filledString(s string) func() bool {
	return func() bool { return len(s) > minMeaningfulLen }
}

func filledList(l []string) func() bool {
	return func() bool { return len(l) > 0 }
}

// QualityScore rates a normalized record 0-100 by field completeness.
// The company block contributes up to 50 points; the first five contacts
// share the other 50.
func QualityScore(company model.Company, contacts []model.Contact) int {
	score := companyScore(company) + contactsScore(contacts)
	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}

func companyScore(c model.Company) float64 {
	fields := []weightedField{
		{5, filledString(c.Name)},
		{5, filledString(c.WebsiteURL)},
		{5, filledString(c.LinkedInURL)},
		{5, filledString(c.Industry)},
		{3, filledString(c.RevenueRange)},
		{3, filledString(c.EmployeeCountRange)},
		{4, filledList(c.TechnologiesUsed)},
		{10, filledString(c.MissionSummary)},
		{10, filledString(c.ActivitySummary)},
		{2, filledString(c.ContactFormURL)},
		{2, filledString(c.Description)},
		{1, func() bool { return c.FoundedYear != 0 }},
		{1, filledString(c.Headquarters)},
	}
	return normalizedScore(fields) * 50
}

func contactsScore(contacts []model.Contact) float64 {
	if len(contacts) == 0 {
		return 0
	}

	scored := len(contacts)
	if scored > maxScoredContacts {
		scored = maxScoredContacts
	}
	perContact := 50.0 / float64(scored)

	var total float64
	for _, c := range contacts[:scored] {
		total += contactScore(c) * perContact
	}
	return total
}

func contactScore(c model.Contact) float64 {
	fields := []weightedField{
		{2, filledString(c.Name)},
		{2, filledString(c.Title)},
		{3, filledString(c.EmailPrimary)},
		{2, filledList(c.PhoneNumbers)},
		{2, func() bool { return !c.SocialProfiles.IsEmpty() }},
		{3, filledString(c.ProfileSummary)},
		{3, filledList(c.RecentActivity)},
		{2, filledString(c.AccomplishmentsSummary)},
		{2, filledString(c.PastWorkSummary)},
		{2, filledString(c.CurrentWorkSummary)},
		{2, filledString(c.ContributionsSummary)},
	}
	return normalizedScore(fields)
}

// normalizedScore returns the filled fraction of the total weight, in [0, 1].
func normalizedScore(fields []weightedField) float64 {
	total := 0
	filled := 0
	for _, f := range fields {
		total += f.weight
		if f.filled() {
			filled += f.weight
		}
	}
	if total == 0 {
		return 0
	}
	return float64(filled) / float64(total)
}
