package query

import (
	"fmt"

	"github.com/rajindersingh041/sidebar-qa/internal/models"
)

// Event name filters used by the sidebar QA report.
const (
	SidebarPrefix = "ui."
	DonatePrefix  = "n-site"
	DonateLink    = "n-sitesupport"
)

// TestWikis are the wikis the collapsible sidebar was first deployed to.
var TestWikis = []string{"euwiki", "frwiktionary", "ptwikiversity", "frwiki", "hewiki", "fawiki"}

// DefaultWindow covers the days after the July 2020 deployment.
var DefaultWindow = models.MustWindow("2020-07-16", "2020-07-31")

// DefaultSteps returns the post-deployment QA steps in report order.
func DefaultSteps() []Step {
	const (
		date   = models.DimDate
		action = models.DimAction
		wiki   = models.DimWiki
		skin   = models.DimSkinVersion
		anon   = models.DimAnonymous
		name   = models.DimName
	)
	sinceDeploy := DefaultWindow
	sidebarWikis := models.MustWindow("2020-07-19", "2020-07-31")
	donateWikis := models.MustWindow("2020-07-15", "2020-07-31")

	return []Step{
		{
			ID:         "actions-by-wiki",
			Title:      "Count events by wiki",
			Window:     sinceDeploy,
			Dimensions: []models.Dimension{date, action, wiki},
			Index:      []models.Dimension{wiki, date},
			Column:     action,
		},
		{
			ID:         "actions-by-skin",
			Title:      "Count events by skin version",
			Window:     sinceDeploy,
			Dimensions: []models.Dimension{action, skin},
			Index:      []models.Dimension{skin},
			Column:     action,
		},
		{
			ID:         "actions-by-wiki-skin",
			Title:      "Count events by skin version on test wikis",
			Window:     sinceDeploy,
			Dimensions: []models.Dimension{action, skin, wiki},
			Index:      []models.Dimension{wiki, skin},
			Column:     action,
			FillZero:   true,
		},
		{
			ID:          "sidebar-by-date",
			Title:       "Collapsible sidebar events by date",
			Description: "Clicks to the collapsible sidebar (event names starting with " + SidebarPrefix + ").",
			Window:      sinceDeploy,
			NamePrefix:  SidebarPrefix,
			Dimensions:  []models.Dimension{date, name},
			Index:       []models.Dimension{date},
			Column:      name,
		},
		{
			ID:         "sidebar-by-wiki",
			Title:      "Collapsible sidebar events by wiki and date",
			Window:     sidebarWikis,
			NamePrefix: SidebarPrefix,
			Dimensions: []models.Dimension{date, name, wiki},
			Index:      []models.Dimension{wiki, date},
			Column:     name,
		},
		{
			ID:          "donate-by-date",
			Title:       "Donate link events",
			Description: fmt.Sprintf("Interaction with the donate link (name = %q).", DonateLink),
			Window:      sinceDeploy,
			NamePrefix:  DonatePrefix,
			Dimensions:  []models.Dimension{date, name},
			Index:       []models.Dimension{date, name},
		},
		{
			ID:         "donate-by-wiki",
			Title:      "Donate link events by wiki",
			Window:     donateWikis,
			NamePrefix: DonatePrefix,
			Dimensions: []models.Dimension{date, name, wiki},
			Index:      []models.Dimension{wiki, name},
			Column:     date,
		},
		{
			ID:         "donate-by-skin",
			Title:      "Donate link events on wikis by skin version",
			Window:     sinceDeploy,
			Name:       DonateLink,
			Dimensions: []models.Dimension{skin, name, wiki},
			Index:      []models.Dimension{name, wiki, skin},
		},
		{
			ID:         "donate-by-anon",
			Title:      "Donate link events by logged in/out users",
			Window:     sinceDeploy,
			Name:       DonateLink,
			Dimensions: []models.Dimension{skin, name, wiki, anon},
			Index:      []models.Dimension{name, wiki, skin},
			Column:     anon,
			FillZero:   true,
		},
		{
			ID:         "donate-by-anon-day",
			Title:      "Donate link events by logged in/out users by day",
			Window:     sinceDeploy,
			Name:       DonateLink,
			Dimensions: []models.Dimension{date, skin, name, wiki, anon},
			Index:      []models.Dimension{name, wiki, date, skin},
			Column:     anon,
			FillZero:   true,
		},
	}
}

// Select keeps the steps whose id is listed, in report order. An empty list keeps all.
func Select(steps []Step, ids []string) ([]Step, error) {
	if len(ids) == 0 {
		return steps, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Step
	for _, s := range steps {
		if want[s.ID] {
			out = append(out, s)
			delete(want, s.ID)
		}
	}
	for id := range want {
		return nil, fmt.Errorf("unknown step %q", id)
	}
	return out, nil
}
