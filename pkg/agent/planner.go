// Package agent implements the query-planning and execution pipeline:
// planning, decomposition, context retrieval, SQL generation with safety
// enforcement, result stitching, and deterministic presentation.
package agent

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/arcadia-ai/dataagent/pkg/models"
	"github.com/arcadia-ai/dataagent/pkg/semantics"
)

// AmbiguityMargin is the score distance within which two domains are
// considered tied and the question ambiguous. Tunable constant carried over
// from observed behavior, not a derived threshold.
const AmbiguityMargin = 1

// maxTablesNeeded caps how many tables a plan pulls into generation context.
const maxTablesNeeded = 5

// EntityIDReference is the reference-map key used when a pronoun resolves
// to the previous turn's active entity IDs.
const EntityIDReference = "entity_ids"

var (
	expectedCountPattern = regexp.MustCompile(`(?i)\b(?:top|first|best|last)\s+(\d+)\b`)
	leadingCountPattern  = regexp.MustCompile(`(?i)\b(\d+)\s+(?:best|top|most|biggest|largest)\b`)

	referencePattern = regexp.MustCompile(`(?i)\b(their|those|these|them|they|it|same)\b`)
	// namedReferencePattern captures the noun after "those"/"these" so
	// "those zip codes" can resolve against a named result-value bucket.
	namedReferencePattern = regexp.MustCompile(`(?i)\b(?:those|these|same)\s+([a-z][a-z _-]*[a-z])`)

	refinementPattern = regexp.MustCompile(`(?i)\b(change|add|remove|edit|instead|also show|but with|sort by|order by)\b`)
)

// Planner classifies questions and produces QueryPlans.
type Planner struct {
	layer  *semantics.Layer
	logger *zap.Logger
}

// NewPlanner creates a planner over the semantic layer.
func NewPlanner(layer *semantics.Layer, logger *zap.Logger) *Planner {
	return &Planner{
		layer:  layer,
		logger: logger.Named("planner"),
	}
}

// Plan classifies the question's turn type, detects ambiguity, resolves
// references against the session, and determines the tables needed. An
// ambiguous plan must short-circuit the pipeline; it never reaches
// decomposition or generation.
func (p *Planner) Plan(question string, session *models.DataAgentSession, schemaMap *models.SchemaMap) *models.QueryPlan {
	plan := &models.QueryPlan{
		Intent: strings.TrimSpace(question),
	}

	scores := p.layer.ScoreDomains(question)
	domain, runnerUp, top, second := rankDomains(scores)

	// Domain selection falls back to the session's domain when the
	// question itself carries no domain signal.
	if top == 0 {
		if session != nil && session.CurrentDomain != "" && session.CurrentDomain != models.DomainUnknown {
			domain = session.CurrentDomain
		} else {
			plan.Ambiguous = true
			plan.ClarifyText = "I'm not sure which data you're asking about. Could you mention the area — for example orders, customers, or campaigns?"
			plan.Clarification = &models.Clarification{
				Question: plan.ClarifyText,
				Options:  domainOptions(),
			}
			return plan
		}
	} else if top-second <= AmbiguityMargin && runnerUp != domain && second > 0 {
		// Two domains scored within the margin of each other: asking is
		// cheaper than guessing wrong.
		plan.Ambiguous = true
		plan.ClarifyText = fmt.Sprintf("Your question could be about %s or %s. Which did you mean?", domain, runnerUp)
		plan.Clarification = &models.Clarification{
			Question: plan.ClarifyText,
			Options:  []string{string(domain), string(runnerUp)},
		}
		return plan
	}

	plan.Domain = domain
	plan.TurnType = p.classifyTurn(question, session, domain)

	if plan.TurnType == models.TurnRefinement {
		if last := session.LastTurn(); last != nil {
			plan.PriorSQL = last.SQL
			plan.EditInstruction = strings.TrimSpace(question)
		}
	}

	refs, unresolved := p.resolveReferences(question, session)
	if len(refs) > 0 {
		plan.ResolvedReferences = refs
	}
	if unresolved {
		// A reference with nothing to resolve against cannot silently
		// proceed; without conversation state the question is ambiguous.
		plan.Ambiguous = true
		plan.ClarifyText = "You referred to earlier results, but I don't have them in this conversation. Could you name the specific customers, orders, or values you mean?"
		plan.Clarification = &models.Clarification{Question: plan.ClarifyText}
		return plan
	}

	plan.ExpectedRowCount = parseExpectedCount(question)
	plan.PresentationHint = parsePresentationHint(question)
	plan.TablesNeeded = p.tablesNeeded(question, domain, schemaMap)

	p.logger.Debug("question planned",
		zap.String("turn_type", string(plan.TurnType)),
		zap.String("domain", string(plan.Domain)),
		zap.Strings("tables", plan.TablesNeeded),
		zap.Int("expected_rows", plan.ExpectedRowCount))

	return plan
}

// classifyTurn determines how the question relates to conversation history.
func (p *Planner) classifyTurn(question string, session *models.DataAgentSession, domain models.Domain) models.TurnType {
	if session == nil || len(session.Queries) == 0 {
		return models.TurnNew
	}

	last := session.LastTurn()
	if refinementPattern.MatchString(question) && last != nil && last.SQL != "" {
		return models.TurnRefinement
	}

	if referencePattern.MatchString(question) {
		return models.TurnFollowUp
	}

	if session.CurrentDomain != "" && session.CurrentDomain != models.DomainUnknown && domain != session.CurrentDomain {
		return models.TurnPivot
	}

	return models.TurnFollowUp
}

// resolveReferences maps symbolic references to concrete values from the
// previous turn. "those zip codes" resolves against a named result-value
// bucket; bare pronouns resolve against active entity IDs. The second
// return is true when the question references prior results the session
// does not hold.
func (p *Planner) resolveReferences(question string, session *models.DataAgentSession) (map[string][]string, bool) {
	if !referencePattern.MatchString(question) {
		return nil, false
	}

	if session == nil || len(session.Queries) == 0 {
		return nil, true
	}

	refs := make(map[string][]string)
	last := session.LastTurn()

	// Named references first: "those zip codes" -> result_values["zip"].
	for _, m := range namedReferencePattern.FindAllStringSubmatch(question, -1) {
		noun := strings.TrimSpace(m[1])
		if values, name, ok := lookupResultValues(last, noun); ok {
			refs[name] = values
		}
	}

	// Bare pronouns fall back to the active entity IDs.
	if len(refs) == 0 && len(session.ActiveEntityIDs) > 0 {
		refs[EntityIDReference] = session.ActiveEntityIDs
	}

	if len(refs) == 0 {
		return nil, true
	}
	return refs, false
}

// lookupResultValues matches a noun phrase against the last turn's named
// result-value buckets, tolerating plural forms and multi-word phrases.
func lookupResultValues(last *models.QueryTurn, noun string) ([]string, string, bool) {
	if last == nil || len(last.ResultValues) == 0 {
		return nil, "", false
	}

	candidates := []string{noun}
	words := strings.Fields(noun)
	if len(words) > 1 {
		candidates = append(candidates, words[0], words[len(words)-1])
	}
	for _, c := range []string{noun, words[0]} {
		if s := inflection.Singular(c); s != c {
			candidates = append(candidates, s)
		}
	}

	for _, cand := range candidates {
		key := strings.ReplaceAll(strings.TrimSpace(cand), " ", "_")
		for name, values := range last.ResultValues {
			if strings.EqualFold(name, key) || strings.EqualFold(name, inflection.Singular(key)) {
				return values, name, true
			}
		}
	}
	return nil, "", false
}

func (p *Planner) tablesNeeded(question string, domain models.Domain, schemaMap *models.SchemaMap) []string {
	seen := make(map[string]bool)
	var tables []string

	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		if schemaMap != nil {
			if t, ok := schemaMap.Table(name); !ok || !t.Domain.IsUserFacing() {
				return
			}
		}
		seen[name] = true
		tables = append(tables, name)
	}

	if info, ok := p.layer.Domains[domain]; ok {
		add(info.PrimaryTable)
		q := strings.ToLower(question)
		for _, t := range info.Tables {
			// Pull in domain tables the question actually names.
			if strings.Contains(q, strings.ToLower(t)) || strings.Contains(q, inflection.Singular(strings.ToLower(t))) {
				add(t)
			}
		}
	}

	for _, match := range p.layer.MatchTerms(question) {
		add(match.Table)
	}
	for _, m := range p.layer.MatchMetrics(question) {
		add(m.Table)
	}

	if len(tables) > maxTablesNeeded {
		tables = tables[:maxTablesNeeded]
	}
	return tables
}

func parseExpectedCount(question string) int {
	if m := expectedCountPattern.FindStringSubmatch(question); m != nil {
		return atoiSafe(m[1])
	}
	if m := leadingCountPattern.FindStringSubmatch(question); m != nil {
		return atoiSafe(m[1])
	}
	return 0
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func parsePresentationHint(question string) models.PresentationType {
	q := strings.ToLower(question)
	switch {
	case strings.Contains(q, "over time") || strings.Contains(q, "trend") || strings.Contains(q, "by month") || strings.Contains(q, "by week"):
		return models.PresentationLineChart
	case strings.Contains(q, "chart") || strings.Contains(q, "graph") || strings.Contains(q, "plot"):
		return models.PresentationBarChart
	case strings.Contains(q, "as a table") || strings.Contains(q, "list of") || strings.Contains(q, "show me all"):
		return models.PresentationTable
	case strings.Contains(q, "profile") || strings.Contains(q, "details about") || strings.Contains(q, "tell me about"):
		return models.PresentationDetail
	}
	return ""
}

// rankDomains returns the best and runner-up user-facing domains with
// their scores.
func rankDomains(scores map[models.Domain]int) (best, runnerUp models.Domain, top, second int) {
	type ds struct {
		domain models.Domain
		score  int
	}
	ranked := make([]ds, 0, len(scores))
	for d, s := range scores {
		if d.IsUserFacing() {
			ranked = append(ranked, ds{d, s})
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].domain < ranked[j].domain
	})

	if len(ranked) > 0 {
		best, top = ranked[0].domain, ranked[0].score
	}
	if len(ranked) > 1 {
		runnerUp, second = ranked[1].domain, ranked[1].score
	}
	return best, runnerUp, top, second
}

func domainOptions() []string {
	opts := make([]string, 0, len(models.ValidDomains))
	for _, d := range models.ValidDomains {
		opts = append(opts, string(d))
	}
	return opts
}
