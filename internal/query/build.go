package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rajindersingh041/sidebar-qa/internal/models"
)

// CountColumn is the alias of the measure in every count query.
const CountColumn = "events"

// Columns of the event table.
const (
	ColTimestamp   = "dt"
	ColAction      = "action"
	ColWiki        = "wiki"
	ColName        = "name"
	ColSkinVersion = "skinversion"
	ColIsAnon      = "isanon"
)

// TableColumns lists the event table columns in insert order.
var TableColumns = []string{ColTimestamp, ColAction, ColWiki, ColName, ColSkinVersion, ColIsAnon}

func dimensionExpr(d Dialect, dim models.Dimension) string {
	switch dim {
	case models.DimDate:
		return d.DateExpr(ColTimestamp)
	case models.DimAction:
		return ColAction
	case models.DimWiki:
		return ColWiki
	case models.DimSkinVersion:
		return ColSkinVersion
	case models.DimAnonymous:
		return ColIsAnon
	case models.DimName:
		return ColName
	}
	return ""
}

// Build renders the count query of a step:
//
//	SELECT <dims>, COUNT(*) AS events FROM <table>
//	WHERE dt >= ? AND dt < ? [AND <prefix>] [AND name = ?] [AND wiki IN (...)]
//	GROUP BY <dims> ORDER BY 1, 2, ...
func Build(d Dialect, table string, s Step, wikis []string) (string, []any, error) {
	if err := s.Validate(); err != nil {
		return "", nil, err
	}
	if strings.TrimSpace(table) == "" {
		return "", nil, fmt.Errorf("step %s: no table", s.ID)
	}

	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return d.Placeholder(len(args))
	}

	exprs := make([]string, len(s.Dimensions))
	selects := make([]string, len(s.Dimensions))
	order := make([]string, len(s.Dimensions))
	for i, dim := range s.Dimensions {
		exprs[i] = dimensionExpr(d, dim)
		selects[i] = exprs[i] + " AS " + d.Quote(string(dim))
		order[i] = strconv.Itoa(i + 1)
	}

	start, end := s.Window.Bounds()
	where := []string{
		ColTimestamp + " >= " + bind(d.TimeArg(start)),
		ColTimestamp + " < " + bind(d.TimeArg(end)),
	}
	if s.NamePrefix != "" {
		where = append(where, d.PrefixExpr(ColName, bind(s.NamePrefix)))
	}
	if s.Name != "" {
		where = append(where, ColName+" = "+bind(s.Name))
	}
	if len(wikis) > 0 {
		marks := make([]string, len(wikis))
		for i, w := range wikis {
			marks[i] = bind(w)
		}
		where = append(where, ColWiki+" IN ("+strings.Join(marks, ", ")+")")
	}

	var b strings.Builder
	b.WriteString("SELECT\n  ")
	b.WriteString(strings.Join(selects, ",\n  "))
	b.WriteString(",\n  COUNT(*) AS ")
	b.WriteString(d.Quote(CountColumn))
	b.WriteString("\nFROM ")
	b.WriteString(QuoteTable(d, table))
	b.WriteString("\nWHERE\n  ")
	b.WriteString(strings.Join(where, "\n  AND "))
	b.WriteString("\nGROUP BY ")
	b.WriteString(strings.Join(exprs, ", "))
	b.WriteString("\nORDER BY ")
	b.WriteString(strings.Join(order, ", "))
	return b.String(), args, nil
}
