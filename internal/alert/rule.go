package alert

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/logger"
	"github.com/amitpo23/medici-web03012026-sub000/internal/signals"

	"go.uber.org/zap"
)

// Condition is a pure predicate over one cycle's snapshots.
// Returning nil means the rule has no opinion this cycle.
type Condition func(set signals.Set, th Values) *Outcome

// Rule 告警规则，启动时加载后不再修改
type Rule struct {
	ID          string
	Name        string
	Description string
	Severity    Severity
	Category    string
	Channels    []string
	// Cooldown opts the rule into duration based notification suppression.
	Cooldown  time.Duration
	Condition Condition
}

// RuleError records a rule whose condition panicked.
type RuleError struct {
	Rule  string `json:"rule"`
	Error string `json:"error"`
}

// RuleEngine evaluates the registered rules against a snapshot set.
type RuleEngine struct {
	rules []Rule
	log   *zap.Logger
}

func NewRuleEngine(log *zap.Logger, rules ...Rule) *RuleEngine {
	return &RuleEngine{
		rules: append([]Rule(nil), rules...),
		log:   logger.OrNop(log),
	}
}

// Rules returns the registered rules.
func (e *RuleEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Rule looks up a rule by id.
func (e *RuleEngine) Rule(id string) (Rule, bool) {
	for _, r := range e.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Evaluate runs every rule concurrently. A panicking rule is logged and
// skipped; the others still produce outcomes. Outcomes are sorted by rule id.
func (e *RuleEngine) Evaluate(ctx context.Context, set signals.Set, th Values) ([]Outcome, []RuleError) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes []Outcome
		failures []RuleError
	)

	for _, r := range e.rules {
		if r.Condition == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(r Rule) {
			defer wg.Done()

			o, err := evaluateRule(r, set, th)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures = append(failures, RuleError{Rule: r.ID, Error: err.Error()})
				e.log.Error("Rule evaluation failed", zap.String("rule", r.ID), zap.Error(err))
				return
			}
			if o != nil {
				outcomes = append(outcomes, *o)
			}
		}(r)
	}
	wg.Wait()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].RuleID < outcomes[j].RuleID })
	return outcomes, failures
}

func evaluateRule(r Rule, set signals.Set, th Values) (o *Outcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			o, err = nil, fmt.Errorf("rule %s panicked: %v", r.ID, p)
		}
	}()

	o = r.Condition(set, th)
	if o == nil {
		return nil, nil
	}

	// rule metadata fills whatever the condition left blank
	o.RuleID = r.ID
	if o.Fired && o.Severity == "" {
		o.Severity = r.Severity
	}
	if o.Category == "" {
		o.Category = r.Category
	}
	if len(o.Channels) == 0 {
		o.Channels = append([]string(nil), r.Channels...)
	}
	if o.Title == "" {
		o.Title = r.Name
	}
	o.Cooldown = r.Cooldown
	return o, nil
}
