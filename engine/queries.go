package engine

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// maxQueries bounds the number of expressions per plan. Longer panels
// burn the rate-limit budget without adding recall.
const maxQueries = 5

// defaultExprs is the built-in query panel used when no expressions are
// configured. It targets Indonesian free nutritious meal program
// coverage, the original deployment of this engine.
var defaultExprs = []string{
	`Makan Bergizi Gratis OR MBG lang:id`,
	`('Makan Bergizi Gratis' OR 'MBG' OR 'makan gratis')`,
	`('gizi anak' OR 'makanan gratis' OR 'MBG')`,
	`('makan gratis' OR 'program makan' OR 'makan bersama') lang:id`,
	`(Makan Bergizi Gratis OR MBG) (Jakarta OR Surabaya OR Bandung OR Medan OR Makassar OR Palembang OR Semarang OR Yogyakarta)`,
}

// Plan builds the ordered search queries for one window. since is
// inclusive and until exclusive, both formatted as dates. Empty and
// duplicate expressions are dropped; at most five survive, in input
// order, so the same inputs always produce the same plan.
func Plan(exprs []string, since, until time.Time) []string {
	if len(exprs) == 0 {
		exprs = defaultExprs
	}

	sinceStr := since.Format("2006-01-02")
	untilStr := until.Format("2006-01-02")

	seen := make(map[string]struct{}, len(exprs))
	queries := make([]string, 0, maxQueries)
	for _, expr := range exprs {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		if _, dup := seen[expr]; dup {
			continue
		}
		seen[expr] = struct{}{}
		queries = append(queries, fmt.Sprintf("%s since:%s until:%s", expr, sinceStr, untilStr))
		if len(queries) == maxQueries {
			break
		}
	}
	return queries
}

// DayPlan builds the queries for a single collection date.
func DayPlan(exprs []string, day time.Time) []string {
	return Plan(exprs, day, day.AddDate(0, 0, 1))
}

// SearchURL renders the live-search URL for a query.
func SearchURL(baseURL, query string) string {
	return baseURL + "/search?q=" + url.QueryEscape(query) + "&src=typed_query&f=live"
}
