// Package scoring computes deterministic multi-factor lead scores.
// Scoring is a pure function of the lead snapshot: no I/O, no clock,
// no external state. Callers decide whether to persist the total back
// onto the lead record.
package scoring

import (
	"math"
	"strings"

	"crm_routing_backend/internal/routing/domain"
)

// Category weights. Must sum to 100.
const (
	weightDemographic  = 30
	weightFirmographic = 25
	weightBehavioral   = 25
	weightSource       = 20
)

// Breakdown holds the per-category sub-scores (each 0-100 before weighting)
// and the weighted total.
type Breakdown struct {
	Demographic  int `json:"demographic"`
	Firmographic int `json:"firmographic"`
	Behavioral   int `json:"behavioral"`
	Source       int `json:"source"`
	Total        int `json:"total"`
}

// consumerEmailDomains are webmail providers that indicate a personal rather
// than a business address.
var consumerEmailDomains = map[string]bool{
	"gmail.com":      true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"aol.com":        true,
	"icloud.com":     true,
	"live.com":       true,
	"msn.com":        true,
	"protonmail.com": true,
	"mail.com":       true,
}

// sourceScoreTable maps acquisition channels to their quality scores,
// highest-quality first. Unknown sources score the same as Other.
var sourceScoreTable = map[domain.LeadSource]int{
	domain.SourceReferral:        90,
	domain.SourcePartner:         85,
	domain.SourceWebinar:         80,
	domain.SourceContentDownload: 75,
	domain.SourceWebsite:         70,
	domain.SourceEmailCampaign:   65,
	domain.SourceTradeShow:       60,
	domain.SourceSocialMedia:     55,
	domain.SourceAdvertisement:   50,
	domain.SourceColdCall:        40,
	domain.SourceOther:           30,
}

// Score computes the weighted total and category breakdown for a lead.
// Calling it twice on an identical snapshot yields an identical result.
func Score(lead domain.Lead) Breakdown {
	b := Breakdown{
		Demographic:  scoreDemographic(lead),
		Firmographic: scoreFirmographic(lead),
		Behavioral:   scoreBehavioral(lead),
		Source:       scoreSource(lead),
	}

	total := float64(b.Demographic)*weightDemographic/100 +
		float64(b.Firmographic)*weightFirmographic/100 +
		float64(b.Behavioral)*weightBehavioral/100 +
		float64(b.Source)*weightSource/100
	b.Total = clampScore(total)

	return b
}

// scoreDemographic evaluates WHO the lead is: email quality, seniority,
// and contact completeness.
func scoreDemographic(lead domain.Lead) int {
	score := 0

	if lead.Email != "" {
		if isBusinessEmail(lead.Email) {
			score += 40
		} else {
			score += 20
		}
	}

	if lead.JobTitle != "" {
		title := strings.ToLower(lead.JobTitle)
		switch {
		case containsAny(title, []string{"ceo", "cto", "cfo", "coo", "chief"}):
			score += 35
		case containsAny(title, []string{"director", "vp", "vice president"}):
			score += 30
		case containsAny(title, []string{"manager", "head"}):
			score += 25
		case containsAny(title, []string{"senior", "lead"}):
			score += 20
		default:
			score += 15
		}
	}

	// Contact completeness
	if lead.Phone != "" {
		score += 8
	}
	if lead.Company != "" {
		score += 10
	}
	if lead.JobTitle != "" {
		score += 7
	}

	return clampCategory(score)
}

// scoreFirmographic evaluates the COMPANY behind the lead: size, revenue,
// industry tier, and name/title heuristics.
func scoreFirmographic(lead domain.Lead) int {
	score := 0

	switch {
	case lead.EmployeeCount >= 1000:
		score += 20
	case lead.EmployeeCount >= 500:
		score += 15
	case lead.EmployeeCount >= 100:
		score += 10
	case lead.EmployeeCount >= 10:
		score += 5
	}

	switch {
	case lead.AnnualRevenue >= 10_000_000:
		score += 20
	case lead.AnnualRevenue >= 1_000_000:
		score += 15
	case lead.AnnualRevenue >= 100_000:
		score += 10
	case lead.AnnualRevenue >= 10_000:
		score += 5
	}

	if lead.Industry != "" {
		industry := strings.ToLower(lead.Industry)
		switch {
		case containsAny(industry, []string{"tech", "software", "finance", "health", "manufacturing"}):
			score += 10
		case containsAny(industry, []string{"retail", "education", "real estate", "professional"}):
			score += 7
		default:
			score += 5
		}
	}

	if lead.Company != "" {
		company := strings.ToLower(lead.Company)
		switch {
		case containsAny(company, []string{"corp", "inc", "ltd", "llc", "group"}):
			score += 40
		case containsAny(company, []string{"solutions", "systems", "technologies", "consulting"}):
			score += 35
		case containsAny(company, []string{"startup", "studio"}):
			score += 25
		default:
			score += 30
		}
	}

	if lead.JobTitle != "" {
		title := strings.ToLower(lead.JobTitle)
		switch {
		case containsAny(title, []string{"owner", "founder", "ceo", "president"}):
			score += 30
		case containsAny(title, []string{"director", "vp", "head"}):
			score += 25
		case containsAny(title, []string{"manager", "lead"}):
			score += 20
		default:
			score += 15
		}
	}

	if lead.Email != "" {
		if isBusinessEmail(lead.Email) {
			score += 20
		} else {
			score += 5
		}
	}

	return clampCategory(score)
}

// scoreBehavioral evaluates lead ENGAGEMENT: funnel progression, notes,
// and reachability. A converted lead short-circuits to the ceiling.
func scoreBehavioral(lead domain.Lead) int {
	if lead.Status == domain.StatusConverted {
		return 100
	}

	score := 0

	switch lead.Status {
	case domain.StatusQualified:
		score += 60
	case domain.StatusContacted:
		score += 40
	case domain.StatusNurturing:
		score += 30
	case domain.StatusNew:
		score += 20
	case domain.StatusUnqualified:
		score += 0
	}

	if len(lead.Notes) > 100 {
		score += 20
	} else if len(lead.Notes) > 0 {
		score += 10
	}

	if lead.Phone != "" {
		score += 20
	}

	return clampCategory(score)
}

// scoreSource evaluates acquisition channel quality from a fixed table.
func scoreSource(lead domain.Lead) int {
	if score, ok := sourceScoreTable[lead.Source]; ok {
		return score
	}
	return sourceScoreTable[domain.SourceOther]
}

// isBusinessEmail reports whether the address domain is not a known
// consumer webmail provider.
func isBusinessEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	domainPart := strings.ToLower(email[at+1:])
	return !consumerEmailDomains[domainPart]
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func clampCategory(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func clampScore(value float64) int {
	rounded := int(math.Round(value))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}
