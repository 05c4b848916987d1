// Package score computes a record's confidence from field completeness and
// the number of contributing extraction methods.
package score

import (
	"github.com/sells-group/enrich-cli/internal/model"
)

// Weight pairs an essential field with its contribution.
type Weight struct {
	Field  model.Field
	Weight float64
}

// Weights is the essential-field table. The weights sum to 0.85.
var Weights = []Weight{
	{model.FieldName, 0.20},
	{model.FieldDescription, 0.15},
	{model.FieldIndustry, 0.10},
	{model.FieldSize, 0.10},
	{model.FieldHeadquarters, 0.10},
	{model.FieldWebsite, 0.10},
	{model.FieldFounded, 0.05},
	{model.FieldSpecialties, 0.05},
}

const (
	methodBonusStep = 0.05
	methodBonusCap  = 0.15
	missingNameMult = 0.5
)

// Breakdown explains how a score was reached.
type Breakdown struct {
	Fields      map[model.Field]float64 `json:"fields"`
	FieldTotal  float64                 `json:"field_total"`
	Methods     int                     `json:"methods"`
	MethodBonus float64                 `json:"method_bonus"`
	NamePenalty bool                    `json:"name_penalty"`
	Score       float64                 `json:"score"`
}

// Explain scores rec and reports each component.
func Explain(rec *model.ConsolidatedRecord) Breakdown {
	b := Breakdown{Fields: make(map[model.Field]float64, len(Weights))}
	if rec == nil {
		return b
	}

	for _, w := range Weights {
		if _, ok := rec.Get(w.Field); ok {
			b.Fields[w.Field] = w.Weight
			b.FieldTotal += w.Weight
		}
	}

	b.Methods = distinct(rec.ExtractionMethods)
	b.MethodBonus = min(methodBonusStep*float64(b.Methods), methodBonusCap)

	total := b.FieldTotal + b.MethodBonus
	if _, ok := rec.Get(model.FieldName); !ok {
		b.NamePenalty = true
		total *= missingNameMult
	}
	b.Score = clamp(total)
	return b
}

// Score returns rec's confidence in [0, 1].
func Score(rec *model.ConsolidatedRecord) float64 {
	return Explain(rec).Score
}

// Apply sets rec.ConfidenceScore and returns it.
func Apply(rec *model.ConsolidatedRecord) float64 {
	s := Score(rec)
	if rec != nil {
		rec.ConfidenceScore = s
	}
	return s
}

func distinct(ms []model.Method) int {
	seen := make(map[model.Method]bool, len(ms))
	for _, m := range ms {
		seen[m] = true
	}
	return len(seen)
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}
