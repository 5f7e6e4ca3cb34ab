// Package legal holds the curated statute reference and the recommendation
// logic that maps a verification outcome to likely applicable law.
package legal

import (
	"strings"

	"github.com/veritrust/veritrust/internal/models"
)

// Relevance levels, strongest first.
const (
	RelevanceDirect     = "Direct"
	RelevanceSupporting = "Supporting"
	RelevanceContextual = "Contextual"
)

// Statute categories.
const (
	CategoryFraud      = "Fraud"
	CategoryPrivacy    = "Privacy"
	CategoryDefamation = "Defamation"
	CategoryIdentity   = "Identity"
	CategoryCopyright  = "Copyright"
	CategoryEvidence   = "Evidence"
)

// statutes is the built-in reference set. Ordering reflects how often each
// provision applies to manipulated-media cases.
var statutes = []models.ApplicableLaw{
	{
		Title:          "Information Technology Act, 2000",
		Section:        "Section 66D",
		Description:    "Punishment for cheating by personation using a computer resource or communication device.",
		RelevanceLevel: RelevanceDirect,
		Category:       CategoryFraud,
	},
	{
		Title:          "Information Technology Act, 2000",
		Section:        "Section 66C",
		Description:    "Identity theft: fraudulent use of another person's electronic signature, password or unique identification feature.",
		RelevanceLevel: RelevanceDirect,
		Category:       CategoryIdentity,
	},
	{
		Title:          "Information Technology Act, 2000",
		Section:        "Section 66E",
		Description:    "Violation of privacy by capturing, publishing or transmitting images of a private area without consent.",
		RelevanceLevel: RelevanceSupporting,
		Category:       CategoryPrivacy,
	},
	{
		Title:          "Information Technology Act, 2000",
		Section:        "Section 67A",
		Description:    "Publishing or transmitting sexually explicit material in electronic form, including synthetic depictions.",
		RelevanceLevel: RelevanceSupporting,
		Category:       CategoryPrivacy,
	},
	{
		Title:          "Information Technology Act, 2000",
		Section:        "Section 66",
		Description:    "Computer-related offences committed dishonestly or fraudulently, including data alteration.",
		RelevanceLevel: RelevanceContextual,
		Category:       CategoryFraud,
	},
	{
		Title:          "Bharatiya Nyaya Sanhita, 2023",
		Section:        "Section 318",
		Description:    "Cheating: deceiving a person to deliver property or to act against their interest.",
		RelevanceLevel: RelevanceDirect,
		Category:       CategoryFraud,
	},
	{
		Title:          "Bharatiya Nyaya Sanhita, 2023",
		Section:        "Section 319",
		Description:    "Cheating by personation, including impersonation through fabricated digital media.",
		RelevanceLevel: RelevanceDirect,
		Category:       CategoryIdentity,
	},
	{
		Title:          "Bharatiya Nyaya Sanhita, 2023",
		Section:        "Section 356",
		Description:    "Defamation by words, signs or visible representations harming a person's reputation.",
		RelevanceLevel: RelevanceSupporting,
		Category:       CategoryDefamation,
	},
	{
		Title:          "Copyright Act, 1957",
		Section:        "Section 51",
		Description:    "Infringement of copyright, covering unauthorised reproduction or derivation of protected works.",
		RelevanceLevel: RelevanceSupporting,
		Category:       CategoryCopyright,
	},
	{
		Title:          "Digital Personal Data Protection Act, 2023",
		Section:        "Section 8",
		Description:    "Obligations of data fiduciaries when processing personal data, including likeness used in synthetic media.",
		RelevanceLevel: RelevanceContextual,
		Category:       CategoryPrivacy,
	},
	{
		Title:          "General Data Protection Regulation (EU)",
		Section:        "Article 22",
		Description:    "Rights concerning automated decision-making and profiling, relevant to cross-border synthetic content.",
		RelevanceLevel: RelevanceContextual,
		Category:       CategoryEvidence,
	},
}

// Search filters the statute reference. Empty arguments match everything;
// the query matches title, section and description case-insensitively.
func Search(query, relevanceLevel, category string) []models.ApplicableLaw {
	query = strings.ToLower(strings.TrimSpace(query))

	matched := make([]models.ApplicableLaw, 0, len(statutes))
	for _, s := range statutes {
		if relevanceLevel != "" && !strings.EqualFold(s.RelevanceLevel, relevanceLevel) {
			continue
		}
		if category != "" && !strings.EqualFold(s.Category, category) {
			continue
		}
		if query != "" && !matchesQuery(s, query) {
			continue
		}
		matched = append(matched, s)
	}
	return matched
}

func matchesQuery(s models.ApplicableLaw, query string) bool {
	return strings.Contains(strings.ToLower(s.Title), query) ||
		strings.Contains(strings.ToLower(s.Section), query) ||
		strings.Contains(strings.ToLower(s.Description), query)
}

// Recommend returns up to two statutes most likely to apply to a stored
// verification outcome.
func Recommend(r *models.VerificationResult) []models.ApplicableLaw {
	var wanted []func(models.ApplicableLaw) bool

	if r.FraudRisk != nil && r.FraudRisk.IsScam {
		wanted = append(wanted, func(s models.ApplicableLaw) bool {
			return s.Category == CategoryFraud
		})
	}
	if r.OriginLabel == models.OriginAI || r.OriginLabel == models.OriginMixed {
		wanted = append(wanted, func(s models.ApplicableLaw) bool {
			return s.Category == CategoryIdentity || s.Category == CategoryCopyright
		})
	}
	if r.RiskLevel == models.RiskHigh {
		wanted = append(wanted, func(s models.ApplicableLaw) bool {
			return s.RelevanceLevel == RelevanceDirect
		})
	}
	if len(wanted) == 0 {
		wanted = append(wanted, func(s models.ApplicableLaw) bool {
			return s.RelevanceLevel == RelevanceContextual
		})
	}

	seen := make(map[string]struct{})
	var out []models.ApplicableLaw
	for _, match := range wanted {
		for _, s := range statutes {
			if len(out) == 2 {
				return out
			}
			key := s.Title + "|" + s.Section
			if _, dup := seen[key]; dup {
				continue
			}
			if match(s) {
				seen[key] = struct{}{}
				out = append(out, s)
			}
		}
	}
	return out
}
