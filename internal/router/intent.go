// Package router runs a user query through the analysis graph: intent
// classification, one analysis branch, and report synthesis.
package router

import "strings"

// Route identifies the branch selected for a query
type Route string

const (
	RouteVariantExtraction Route = "variant_extraction"
	RouteBrainTumor        Route = "brain_tumor"
	RouteDiabetes          Route = "diabetes"
	RouteReport            Route = "generate_report"
)

// Rule maps a set of upper-case keywords to a route
type Rule struct {
	Route    Route
	Keywords []string
}

// Matches reports whether any keyword occurs in the upper-cased query
func (r Rule) Matches(upperQuery string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(upperQuery, kw) {
			return true
		}
	}
	return false
}

// DefaultRules are checked in order; the first match wins.
var DefaultRules = []Rule{
	{Route: RouteVariantExtraction, Keywords: []string{"DNA", "VARIANT", "EVO"}},
	{Route: RouteBrainTumor, Keywords: []string{"CT", "BRAIN", "TUMOR"}},
	{Route: RouteDiabetes, Keywords: []string{"DIABETES", "GLUCOSE", "INSULIN"}},
}

// Classifier selects a route by case-insensitive substring matching
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over rules
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify returns the first matching route, or RouteReport
func (c *Classifier) Classify(query string) Route {
	upper := strings.ToUpper(query)
	for _, rule := range c.rules {
		if rule.Matches(upper) {
			return rule.Route
		}
	}
	return RouteReport
}
