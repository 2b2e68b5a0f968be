// Package priority computes a 0-100 collection priority score from debt and
// debtor signals. The score feeds SLA template selection at case creation and
// is exposed to the dashboard for allocation decisions.
package priority

import (
	"math"
	"strings"

	"caseflow/internal/domain"
	dErrors "caseflow/pkg/domain-errors"
)

// Weights applied to the factor scores. They sum to 1 so the total stays on
// the 0-100 scale.
const (
	weightAmount  = 0.35
	weightDays    = 0.30
	weightSegment = 0.20
	weightHistory = 0.15
)

// segmentScores ranks customer segments by collection value.
var segmentScores = map[string]float64{
	"ENTERPRISE": 100,
	"LARGE":      80,
	"MEDIUM":     60,
	"SMALL":      40,
	"MICRO":      20,
}

const defaultSegmentScore = 50

// RiskLevel bands the composite score for operator display. It is finer than
// domain.Priority: the bottom band exists so near-zero scores read as "leave
// it alone" rather than "low priority work".
type RiskLevel string

const (
	RiskCritical RiskLevel = "CRITICAL"
	RiskHigh     RiskLevel = "HIGH"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskLow      RiskLevel = "LOW"
	RiskMinimal  RiskLevel = "MINIMAL"
)

// Priority maps the risk band onto the case priority enumeration used for
// SLA template selection. MINIMAL collapses into LOW.
func (r RiskLevel) Priority() domain.Priority {
	switch r {
	case RiskCritical:
		return domain.PriorityCritical
	case RiskHigh:
		return domain.PriorityHigh
	case RiskMedium:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}

// Request carries the scoring inputs for one case.
type Request struct {
	CaseID              string  `json:"case_id,omitempty"`
	OutstandingAmount   float64 `json:"outstanding_amount"`
	DaysPastDue         int     `json:"days_past_due"`
	Segment             string  `json:"segment,omitempty"`
	PaymentHistoryScore float64 `json:"payment_history_score"`
}

// Validate bounds-checks the inputs.
func (r Request) Validate() error {
	if r.OutstandingAmount < 0 {
		return dErrors.New(dErrors.CodeValidation, "outstanding_amount must be non-negative")
	}
	if r.DaysPastDue < 0 {
		return dErrors.New(dErrors.CodeValidation, "days_past_due must be non-negative")
	}
	if r.PaymentHistoryScore < 0 || r.PaymentHistoryScore > 100 {
		return dErrors.New(dErrors.CodeValidation, "payment_history_score must be between 0 and 100")
	}
	return nil
}

// Factor is one weighted component of the composite score.
type Factor struct {
	Factor       string  `json:"factor"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Result is the scoring outcome for one case.
type Result struct {
	CaseID         string          `json:"case_id,omitempty"`
	Score          int             `json:"priority_score"`
	RiskLevel      RiskLevel       `json:"risk_level"`
	Priority       domain.Priority `json:"priority"`
	Factors        []Factor        `json:"factors"`
	Recommendation string          `json:"recommendation"`
}

// Score computes the composite priority for one request.
func Score(req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	history := req.PaymentHistoryScore
	if history == 0 {
		history = 50
	}

	factors := []Factor{
		newFactor("Outstanding Amount", amountScore(req.OutstandingAmount), weightAmount),
		newFactor("Days Past Due", daysScore(req.DaysPastDue), weightDays),
		newFactor("Customer Segment", segmentScore(req.Segment), weightSegment),
		// A debtor with a good payment record is low priority, so the
		// history factor is inverted.
		newFactor("Payment History Risk", 100-history, weightHistory),
	}

	var total float64
	for _, f := range factors {
		total += f.Contribution
	}
	score := int(math.Min(100, math.Max(0, total)))
	level := riskLevel(score)

	return &Result{
		CaseID:         req.CaseID,
		Score:          score,
		RiskLevel:      level,
		Priority:       level.Priority(),
		Factors:        factors,
		Recommendation: recommendation(score),
	}, nil
}

// ScoreBatch scores many cases, isolating invalid entries into per-item
// errors instead of failing the batch.
type BatchItem struct {
	Result *Result `json:"result,omitempty"`
	Err    string  `json:"error,omitempty"`
}

func ScoreBatch(reqs []Request) []BatchItem {
	items := make([]BatchItem, 0, len(reqs))
	for _, req := range reqs {
		result, err := Score(req)
		if err != nil {
			items = append(items, BatchItem{Err: err.Error()})
			continue
		}
		items = append(items, BatchItem{Result: result})
	}
	return items
}

func newFactor(name string, score, weight float64) Factor {
	return Factor{
		Factor:       name,
		Score:        round1(score),
		Weight:       weight,
		Contribution: round1(score * weight),
	}
}

// amountScore maps outstanding amount to 0-100 on a log scale: 1k scores 50,
// 10k scores 75, 100k and above saturate at 100.
func amountScore(amount float64) float64 {
	if amount <= 0 {
		return 0
	}
	score := math.Min(100, 25*math.Log10(math.Max(amount, 1))-25)
	return math.Max(0, score)
}

// daysScore climbs steeply through the first month, then flattens: 30 days
// past due scores 60, 60 days 90, 90+ saturates at 100.
func daysScore(days int) float64 {
	d := float64(days)
	switch {
	case days <= 0:
		return 0
	case days <= 30:
		return d * 2
	case days <= 60:
		return 60 + (d - 30)
	case days <= 90:
		return 90 + (d-60)*0.33
	default:
		return 100
	}
}

func segmentScore(segment string) float64 {
	if score, ok := segmentScores[strings.ToUpper(segment)]; ok {
		return score
	}
	return defaultSegmentScore
}

func riskLevel(score int) RiskLevel {
	switch {
	case score >= 80:
		return RiskCritical
	case score >= 60:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	case score >= 20:
		return RiskLow
	default:
		return RiskMinimal
	}
}

func recommendation(score int) string {
	switch {
	case score >= 80:
		return "Immediate escalation required. Assign to top-performing DCA with legal capability."
	case score >= 60:
		return "High priority case. Assign to experienced DCA with aggressive collection strategy."
	case score >= 40:
		return "Standard collection process. Monitor for payment plan compliance."
	case score >= 20:
		return "Low risk. Automated reminders may be sufficient."
	default:
		return "Minimal intervention needed. Continue standard follow-up."
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
