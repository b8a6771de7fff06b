package extract

import (
	"strings"
	"time"

	"github.com/nocturnehealth/clinscribe/internal/vocab"
)

// deriveRiskFactors applies the vocabulary's ordered risk-rule table as a
// second pass over the extracted entity set. Each rule whose patterns are all
// satisfied synthesises one riskFactor entity, appended in rule order.
func (x *Extractor) deriveRiskFactors(entities []Entity) []Entity {
	var derived []Entity
	for _, rule := range x.vocab.RiskRules {
		if !ruleMatches(rule, entities) {
			continue
		}
		derived = append(derived, Entity{
			Kind:     KindRiskFactor,
			Name:     rule.Severity + ": " + rule.Name,
			Severity: rule.Severity,
			Status:   StatusActive,
			Position: len(entities) + len(derived),
		})
	}
	return derived
}

func ruleMatches(rule vocab.RiskRule, entities []Entity) bool {
	for _, pattern := range rule.When {
		if !anyEntityMatches(pattern, entities) {
			return false
		}
	}
	if rule.MinElapsedDays > 0 && !hasTimingAtLeast(entities, time.Duration(rule.MinElapsedDays)*day) {
		return false
	}
	return true
}

// anyEntityMatches reports whether some non-negated entity satisfies the
// pattern. Negated mentions never satisfy a rule: "denies blood clots" must
// not trigger the VTE rule.
func anyEntityMatches(pattern vocab.EntityPattern, entities []Entity) bool {
	for _, e := range entities {
		if e.Negated || string(e.Kind) != pattern.Kind {
			continue
		}
		if pattern.Class != "" {
			if e.Class != pattern.Class {
				continue
			}
		} else if !strings.EqualFold(e.Name, pattern.Name) {
			continue
		}
		if pattern.Status != "" && string(e.Status) != pattern.Status {
			continue
		}
		return true
	}
	return false
}

func hasTimingAtLeast(entities []Entity, d time.Duration) bool {
	for _, e := range entities {
		if e.Kind == KindTimingMarker && e.Elapsed >= d {
			return true
		}
	}
	return false
}
