// Package resolver maps canonical and aggregated events to actuator commands
// according to the configured rule set.
package resolver

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/domain"
	"github.com/anjing91-skecth/tiktok-live-games-arduino/internal/metrics"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Resolver holds the per-session resolution state. Resolve and ResolveGift
// run on the ingestion goroutine, but ResetSession arrives from session
// lifecycle callers (reconnect handling, manual start over HTTP), so the
// mutable tables are mutex-guarded.
type Resolver struct {
	rules *domain.RuleSet
	clock clockwork.Clock

	mu        sync.Mutex
	cooldowns *cooldownTable

	// nextLikeThreshold[i] is the next unfired threshold of rules.LikeRules[i];
	// 0 means the rule is exhausted (one-shot already fired).
	nextLikeThreshold []int64
	likeTotal         int64
}

func New(rules *domain.RuleSet, clock clockwork.Clock) *Resolver {
	r := &Resolver{
		rules:     rules,
		clock:     clock,
		cooldowns: newCooldownTable(clock),
	}
	r.resetLikeThresholds()
	return r
}

// Resolve handles non-gift canonical events. Gift events reach the resolver
// through ResolveGift after streak aggregation.
func (r *Resolver) Resolve(ev domain.CanonicalEvent) []domain.ResolvedCommand {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case domain.EventComment:
		return r.resolveComment(ev)
	case domain.EventLike:
		return r.resolveLikes(ev)
	default:
		// Follows, shares and viewer updates have no rule kind; they only
		// feed the live-state and durable sinks.
		return nil
	}
}

// ResolveGift picks the nearest-below gift value bucket for an aggregated
// gift and emits its command.
func (r *Resolver) ResolveGift(gift domain.AggregatedGift) []domain.ResolvedCommand {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched *domain.GiftValueRule
	for i := range r.rules.GiftRules {
		rule := &r.rules.GiftRules[i]
		if rule.MinValue > gift.TotalValue {
			break
		}
		matched = rule
	}
	if matched == nil {
		return nil
	}

	cmd := r.command(matched.ID, matched.Action, domain.EventRef{
		Kind:   domain.EventGift,
		UserID: gift.UserID,
	})
	metrics.CommandsResolvedTotal.WithLabelValues("gift_value").Inc()
	return []domain.ResolvedCommand{cmd}
}

// ResetSession clears all per-session resolution state: the cooldown table
// and the like-threshold cursors.
func (r *Resolver) ResetSession() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cooldowns.reset()
	r.likeTotal = 0
	r.resetLikeThresholds()
}

func (r *Resolver) resolveComment(ev domain.CanonicalEvent) []domain.ResolvedCommand {
	rule := r.matchKeyword(ev.Comment)
	if rule == nil {
		return nil
	}

	if !r.cooldowns.tryFire(rule.ID, rule.Cooldown.Duration()) {
		metrics.CooldownSuppressedTotal.Inc()
		slog.Debug("Keyword rule suppressed by cooldown", "rule_id", rule.ID)
		return nil
	}

	cmd := r.command(rule.ID, rule.Action, domain.EventRef{
		Kind:     domain.EventComment,
		UserID:   ev.UserID,
		Sequence: ev.Sequence,
	})
	metrics.CommandsResolvedTotal.WithLabelValues("keyword").Inc()
	return []domain.ResolvedCommand{cmd}
}

// matchKeyword selects the winning rule for a comment: exact rules before
// contains rules, then descending priority, ties broken by registration
// order. Exact means the whole trimmed comment equals the pattern; a pattern
// appearing as one word of a longer comment is a contains match only.
// Cooldown is enforced after selection, not during it.
func (r *Resolver) matchKeyword(comment string) *domain.KeywordRule {
	text := strings.ToLower(strings.TrimSpace(comment))
	if text == "" {
		return nil
	}

	var best *domain.KeywordRule
	bestExact := false
	for i := range r.rules.KeywordRules {
		rule := &r.rules.KeywordRules[i]
		pattern := strings.ToLower(rule.Pattern)

		var ok, exact bool
		switch rule.MatchType {
		case domain.MatchExact:
			ok = text == pattern
			exact = true
		case domain.MatchContains:
			ok = strings.Contains(text, pattern)
		}
		if !ok {
			continue
		}

		if best == nil ||
			(exact && !bestExact) ||
			(exact == bestExact && rule.Priority > best.Priority) {
			best = rule
			bestExact = exact
		}
	}
	return best
}

// resolveLikes advances the per-session like counter and emits one command
// per distinct threshold value crossed in (old, new], in ascending order.
// A value shared by several rules fires once, owned by the first-registered
// rule; every rule crossing it still advances its cursor.
func (r *Resolver) resolveLikes(ev domain.CanonicalEvent) []domain.ResolvedCommand {
	old := r.likeTotal
	r.likeTotal += ev.LikeCount
	now := r.likeTotal

	type crossing struct {
		value int64
		rule  *domain.LikeThresholdRule
	}
	var crossings []crossing

	for i := range r.rules.LikeRules {
		rule := &r.rules.LikeRules[i]
		next := r.nextLikeThreshold[i]
		for next != 0 && next > old && next <= now {
			crossings = append(crossings, crossing{value: next, rule: rule})
			if rule.AutoIncrement > 0 {
				next += rule.AutoIncrement
			} else {
				next = 0
			}
		}
		r.nextLikeThreshold[i] = next
	}

	if len(crossings) == 0 {
		return nil
	}

	sort.SliceStable(crossings, func(i, j int) bool {
		return crossings[i].value < crossings[j].value
	})

	var cmds []domain.ResolvedCommand
	lastValue := int64(-1)
	for _, c := range crossings {
		if c.value == lastValue {
			continue
		}
		lastValue = c.value
		cmds = append(cmds, r.command(c.rule.ID, c.rule.Action, domain.EventRef{
			Kind:     domain.EventLike,
			UserID:   ev.UserID,
			Sequence: ev.Sequence,
		}))
		metrics.CommandsResolvedTotal.WithLabelValues("like_threshold").Inc()
	}
	return cmds
}

func (r *Resolver) resetLikeThresholds() {
	r.nextLikeThreshold = make([]int64, len(r.rules.LikeRules))
	for i, rule := range r.rules.LikeRules {
		r.nextLikeThreshold[i] = rule.Threshold
	}
}

func (r *Resolver) command(ruleID string, action domain.ActionSpec, origin domain.EventRef) domain.ResolvedCommand {
	kind := action.Composite
	if kind == "" {
		if len(action.Pins) > 1 {
			kind = domain.CompositeSimultaneous
		} else {
			kind = domain.CompositeSingle
		}
	}
	return domain.ResolvedCommand{
		ID:          uuid.New(),
		RuleID:      ruleID,
		Pins:        action.Pins,
		Kind:        kind,
		Duration:    action.Duration.Duration(),
		StepDelay:   action.StepDelay.Duration(),
		MaxPins:     action.MaxPins,
		RepeatCount: action.RepeatCount,
		CycleCount:  action.CycleCount,
		Origin:      origin,
		ResolvedAt:  r.clock.Now(),
	}
}
