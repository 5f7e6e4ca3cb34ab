package legal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrust/veritrust/internal/models"
)

func TestSearch(t *testing.T) {
	t.Run("empty filters return everything", func(t *testing.T) {
		all := Search("", "", "")
		assert.Greater(t, len(all), 5)
	})

	t.Run("query matches section case-insensitively", func(t *testing.T) {
		matches := Search("66d", "", "")
		require.Len(t, matches, 1)
		assert.Equal(t, "Section 66D", matches[0].Section)
	})

	t.Run("category filter", func(t *testing.T) {
		matches := Search("", "", CategoryFraud)
		require.NotEmpty(t, matches)
		for _, m := range matches {
			assert.Equal(t, CategoryFraud, m.Category)
		}
	})

	t.Run("relevance and query combine", func(t *testing.T) {
		matches := Search("personation", RelevanceDirect, "")
		require.NotEmpty(t, matches)
		for _, m := range matches {
			assert.Equal(t, RelevanceDirect, m.RelevanceLevel)
		}
	})

	t.Run("no matches yields empty slice", func(t *testing.T) {
		assert.Empty(t, Search("maritime salvage", "", ""))
	})
}

func TestRecommend(t *testing.T) {
	t.Run("scam outcome prefers fraud statutes", func(t *testing.T) {
		recs := Recommend(&models.VerificationResult{
			RiskLevel: models.RiskMedium,
			FraudRisk: &models.FraudRisk{IsScam: true},
		})
		require.Len(t, recs, 2)
		for _, r := range recs {
			assert.Equal(t, CategoryFraud, r.Category)
		}
	})

	t.Run("ai-generated content prefers identity and copyright", func(t *testing.T) {
		recs := Recommend(&models.VerificationResult{
			RiskLevel:   models.RiskMedium,
			OriginLabel: models.OriginAI,
		})
		require.NotEmpty(t, recs)
		for _, r := range recs {
			assert.Contains(t, []string{CategoryIdentity, CategoryCopyright}, r.Category)
		}
	})

	t.Run("high risk falls through to direct statutes", func(t *testing.T) {
		recs := Recommend(&models.VerificationResult{RiskLevel: models.RiskHigh})
		require.Len(t, recs, 2)
		for _, r := range recs {
			assert.Equal(t, RelevanceDirect, r.RelevanceLevel)
		}
	})

	t.Run("benign outcome gets contextual guidance", func(t *testing.T) {
		recs := Recommend(&models.VerificationResult{RiskLevel: models.RiskLow})
		require.NotEmpty(t, recs)
		for _, r := range recs {
			assert.Equal(t, RelevanceContextual, r.RelevanceLevel)
		}
	})

	t.Run("at most two and no duplicates", func(t *testing.T) {
		recs := Recommend(&models.VerificationResult{
			RiskLevel:   models.RiskHigh,
			OriginLabel: models.OriginAI,
			FraudRisk:   &models.FraudRisk{IsScam: true},
		})
		require.Len(t, recs, 2)
		assert.NotEqual(t, recs[0].Section, recs[1].Section)
	})
}
