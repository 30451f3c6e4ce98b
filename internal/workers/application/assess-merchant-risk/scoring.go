package assessmerchantrisk

import (
	"strings"

	"github.com/shopspring/decimal"

	"merchant-onboarding/internal/models"
)

const baseScore = 50

var (
	hundred       = decimal.NewFromInt(100)
	perTxnFee     = decimal.RequireFromString("0.30")
	volumeHeadway = decimal.RequireFromString("0.8")
)

type revenueBand struct {
	over   decimal.Decimal
	points int
}

var annualRevenueBands = []revenueBand{
	{decimal.NewFromInt(1_000_000), 20},
	{decimal.NewFromInt(500_000), 15},
	{decimal.NewFromInt(100_000), 10},
}

var monthlyVolumeBands = []revenueBand{
	{decimal.NewFromInt(100_000), 10},
	{decimal.NewFromInt(50_000), 5},
}

// pricingTier is selected by the first minScore the risk score reaches.
type pricingTier struct {
	minScore      int
	rate          decimal.Decimal
	dailyLimit    int64
	monthlyVolume int64
}

var pricingTiers = []pricingTier{
	{90, decimal.RequireFromString("2.9"), 50_000, 500_000},
	{80, decimal.RequireFromString("3.2"), 40_000, 400_000},
	{70, decimal.RequireFromString("3.5"), 30_000, 300_000},
	{0, decimal.RequireFromString("4.0"), 20_000, 200_000},
}

// Score computes the 0..100 risk score from the business form and the
// confidence of the processed documents. Higher is safer.
func Score(business map[string]interface{}, documents map[string]models.ProcessedDocument) int {
	score := baseScore

	if revenue, ok := parseAmount(business, FieldAnnualRevenue); ok {
		score += bandPoints(annualRevenueBands, revenue)
	}
	if volume, ok := parseAmount(business, FieldMonthlyVolume); ok {
		score += bandPoints(monthlyVolumeBands, volume)
	}

	// documents with no confidence do not count towards the average
	var sum float64
	n := 0
	for _, doc := range documents {
		if c := doc.AIProcessing.ConfidenceScore; c != 0 {
			sum += c
			n++
		}
	}
	if n > 0 {
		score += int(sum / float64(n) * 30)
	}

	industry := strings.ToLower(models.StringField(business, FieldIndustry))
	if strings.Contains(industry, "technology") || strings.Contains(industry, "professional") {
		score += 10
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Decide maps a score to an approval status and a risk level.
func Decide(score, approvalScore int) (string, string) {
	status := models.ApprovalDenied
	if score >= approvalScore {
		status = models.ApprovalApproved
	}

	level := RiskLevelHigh
	switch {
	case score >= 80:
		level = RiskLevelLow
	case score >= 60:
		level = RiskLevelMedium
	}
	return status, level
}

// GenerateTerms prices an approved merchant. Estimated revenue is the
// declared monthly volume, capped at 80% of the tier's monthly volume; an
// unparseable volume falls back to fixed estimates.
func GenerateTerms(business map[string]interface{}, score int) *models.Terms {
	tier := tierFor(score)

	revenue := decimal.NewFromInt(fallbackRevenue)
	fees := decimal.NewFromInt(fallbackFees)

	volume, ok := decimal.NewFromInt(defaultMonthlyVolume), true
	if raw := strings.TrimSpace(models.StringField(business, FieldMonthlyVolume)); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			ok = false
		} else {
			volume = v
		}
	}
	if ok {
		limit := decimal.NewFromInt(tier.monthlyVolume).Mul(volumeHeadway)
		revenue = decimal.Min(volume, limit)
		fees = revenue.Mul(tier.rate).Div(hundred).Add(revenue.Div(hundred).Mul(perTxnFee))
	}

	return &models.Terms{
		Rate:                    tier.rate.StringFixed(1) + "%",
		TransactionFee:          perTransactionFeeText,
		DailyLimit:              formatUSD(decimal.NewFromInt(tier.dailyLimit)),
		MonthlyVolume:           formatUSD(decimal.NewFromInt(tier.monthlyVolume)),
		Settlement:              "Next business day",
		ContractLength:          "12 months",
		HandNetProfit:           formatUSD(revenue.Sub(fees)),
		EstimatedMonthlyRevenue: formatUSD(revenue),
		EstimatedFees:           formatUSD(fees),
	}
}

func tierFor(score int) pricingTier {
	for _, t := range pricingTiers {
		if score >= t.minScore {
			return t
		}
	}
	return pricingTiers[len(pricingTiers)-1]
}

func bandPoints(bands []revenueBand, amount decimal.Decimal) int {
	for _, b := range bands {
		if amount.GreaterThan(b.over) {
			return b.points
		}
	}
	return 0
}

func parseAmount(fields map[string]interface{}, key string) (decimal.Decimal, bool) {
	raw := strings.TrimSpace(models.StringField(fields, key))
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// formatUSD renders whole dollars with thousands separators, e.g. "$1,234".
func formatUSD(d decimal.Decimal) string {
	r := d.RoundBank(0)
	sign := ""
	if r.IsNegative() {
		sign = "-"
		r = r.Abs()
	}

	digits := r.StringFixed(0)
	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return "$" + sign + b.String()
}
