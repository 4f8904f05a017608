package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Payload keys copied onto the case when a dictamen is finalized.
const (
	PayloadKeyFitnessVerdict     = "fitnessVerdict"
	PayloadKeyPrincipalDiagnosis = "principalDiagnosis"
	PayloadKeyDecisionDate       = "decisionDate"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// DictamenProjection holds the denormalized fields found in a payload.
type DictamenProjection struct {
	FitnessVerdict     *string
	PrincipalDiagnosis *string
	DecisionDate       *time.Time
}

// ProjectDictamen extracts the listing fields from an opaque payload.
// Missing, empty, or malformed values are skipped.
func ProjectDictamen(payload json.RawMessage) DictamenProjection {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return DictamenProjection{}
	}

	var p DictamenProjection
	if v, ok := stringField(fields, PayloadKeyFitnessVerdict); ok {
		p.FitnessVerdict = &v
	}
	if v, ok := stringField(fields, PayloadKeyPrincipalDiagnosis); ok {
		p.PrincipalDiagnosis = &v
	}
	if v, ok := stringField(fields, PayloadKeyDecisionDate); ok {
		if d, err := time.Parse(DateLayout, v); err == nil {
			p.DecisionDate = &d
		}
	}
	return p
}

// Apply copies the projected fields onto c.
func (p DictamenProjection) Apply(c *Case) {
	if p.FitnessVerdict != nil {
		c.FitnessVerdict = p.FitnessVerdict
	}
	if p.PrincipalDiagnosis != nil {
		c.PrincipalDiagnosis = p.PrincipalDiagnosis
	}
	if p.DecisionDate != nil {
		c.DecisionDate = p.DecisionDate
	}
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
