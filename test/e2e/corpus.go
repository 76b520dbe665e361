// Package e2e provides end-to-end tests with a generated catalog and noisy queries.
package e2e

import (
	"fmt"
	"strings"

	"github.com/hyperjump/titlenorm/internal/catalog"
)

// QueryTestCase defines a query and the classification it must resolve to.
type QueryTestCase struct {
	Query                  string
	ExpectedClassification string
	Description            string
}

// Corpus holds catalog entries and query test cases for E2E tests.
type Corpus struct {
	Entries      []catalog.Entry
	TestCases    []QueryTestCase
	TotalAliases int
	TotalQueries int
}

// occupations have pairwise distinct stems, so a query containing one of them can only
// overlap with aliases of its own entry.
var occupations = []string{
	"Welder", "Plumber", "Electrician", "Carpenter", "Mason",
	"Roofer", "Glazier", "Machinist", "Pharmacist", "Dentist",
	"Surgeon", "Veterinarian", "Librarian", "Translator", "Paralegal",
	"Actuary", "Economist", "Geologist", "Chemist", "Physicist",
	"Astronomer", "Architect", "Surveyor", "Cartographer", "Photographer",
	"Editor", "Journalist", "Baker", "Butcher", "Florist",
	"Tailor", "Barber", "Cashier", "Bartender", "Lifeguard",
	"Firefighter", "Paramedic", "Janitor", "Gardener", "Locksmith",
}

// aliasPatterns expand an occupation into alias titles; %s is the occupation.
var aliasPatterns = []string{"%s", "Senior %s", "%s Apprentice", "Head %s", "Certified %s"}

// BuildCorpus returns one catalog entry per occupation with five aliases each, and three
// query test cases per occupation: a noisy variant with out-of-vocabulary words, a
// lowercased plural, and an exact alias.
func BuildCorpus() *Corpus {
	c := &Corpus{}
	for i, occ := range occupations {
		name := occ + "s"
		entry := catalog.Entry{Name: name, Code: fmt.Sprintf("99-%04d", i+1)}
		for _, p := range aliasPatterns {
			entry.Aliases = append(entry.Aliases, fmt.Sprintf(p, occ))
		}
		c.Entries = append(c.Entries, entry)
		c.TotalAliases += len(entry.Aliases)

		c.TestCases = append(c.TestCases,
			QueryTestCase{
				Query:                  "Lead " + occ + " II (contract)",
				ExpectedClassification: name,
				Description:            "noise words outside the vocabulary",
			},
			QueryTestCase{
				Query:                  strings.ToLower(occ) + "s",
				ExpectedClassification: name,
				Description:            "lowercase plural",
			},
			QueryTestCase{
				Query:                  "Certified " + occ,
				ExpectedClassification: name,
				Description:            "exact alias",
			},
		)
	}
	c.TotalQueries = len(c.TestCases)
	return c
}

// Queries returns the query of every test case, in order.
func (c *Corpus) Queries() []string {
	out := make([]string, len(c.TestCases))
	for i, tc := range c.TestCases {
		out[i] = tc.Query
	}
	return out
}
