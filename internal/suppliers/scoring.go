package suppliers

import "strings"

// Score bounds and category thresholds.
const (
	BaseScore = 100
	MinScore  = 0
	MaxScore  = 100

	LowRiskThreshold    = 80
	MediumRiskThreshold = 60

	maxCountedCertifications = 5
	certificationBonus       = 5
)

// lowRiskCountries earn the country bonus. Keys are lower-cased.
var lowRiskCountries = map[string]struct{}{
	"australia":      {},
	"austria":        {},
	"canada":         {},
	"denmark":        {},
	"finland":        {},
	"germany":        {},
	"japan":          {},
	"netherlands":    {},
	"new zealand":    {},
	"norway":         {},
	"singapore":      {},
	"sweden":         {},
	"switzerland":    {},
	"united kingdom": {},
}

// IsLowRiskCountry reports allowlist membership, ignoring case and surrounding space.
func IsLowRiskCountry(country string) bool {
	_, ok := lowRiskCountries[normalizeKey(country)]
	return ok
}

// Assessment is the output of the scoring engine.
type Assessment struct {
	Score    int          `json:"riskScore"`
	Category RiskCategory `json:"riskCategory"`
}

// Score computes the additive risk score for a validated input. It is pure:
// the same input always yields the same assessment.
func Score(in RegistrationInput) Assessment {
	score := BaseScore

	switch years := in.YearsInBusiness; {
	case years < 2:
		score -= 20
	case years <= 4:
		score -= 10
	case years > 20:
		score += 5
	}

	certs := countUnique(in.Certifications)
	if certs > maxCountedCertifications {
		certs = maxCountedCertifications
	}
	score += certs * certificationBonus

	switch normalizeKey(in.CompanySize) {
	case "large":
		score += 10
	case "medium":
		score += 5
	case "small":
		score -= 5
	}

	switch normalizeKey(in.Industry) {
	case "construction":
		score -= 10
	case "healthcare":
		score += 5
	}

	if IsLowRiskCountry(in.Country) {
		score += 5
	}

	// delay history only exists in the legacy flow
	if in.Mode == ModeMinimal {
		switch normalizeKey(in.DelayHistory) {
		case DelayFrequent:
			score -= 30
		case DelayOccasional:
			score -= 15
		}
	}

	score = clamp(score, MinScore, MaxScore)
	return Assessment{Score: score, Category: CategoryFor(score)}
}

// CategoryFor maps a score onto its risk band.
func CategoryFor(score int) RiskCategory {
	switch {
	case score >= LowRiskThreshold:
		return RiskLow
	case score >= MediumRiskThreshold:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func countUnique(values []string) int {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		seen[v] = struct{}{}
	}
	return len(seen)
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
