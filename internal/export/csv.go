// Package export renders verification history as CSV downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/veritrust/veritrust/internal/models"
)

// WriteUserHistory streams a user's own history. Column labels match the
// report template shared with account holders.
func WriteUserHistory(w io.Writer, results []models.VerificationResult) error {
	cw := csv.NewWriter(w)

	header := []string{
		"Record ID", "Timestamp", "Category", "Analyzed Content",
		"Risk Classification", "Manipulation Probability %",
		"AI Confidence Score", "Detailed Reasoning",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			r.ID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			string(r.Type),
			r.Content,
			string(r.RiskLevel),
			fmt.Sprintf("%.1f", r.FakeProbability),
			fmt.Sprintf("%.2f", r.ConfidenceScore),
			r.Reasoning,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteAdminReport streams the cross-user report with reporter identity
// attached.
func WriteAdminReport(w io.Writer, results []models.VerificationResult) error {
	cw := csv.NewWriter(w)

	header := []string{
		"Record ID", "Timestamp", "Reporter Email", "Content Type",
		"Content Sample", "Risk Level", "AI Logic %", "Reasoning Summary",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{
			r.ID,
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.UserEmail,
			string(r.Type),
			r.Content,
			string(r.RiskLevel),
			fmt.Sprintf("%.1f", r.FakeProbability),
			r.Reasoning,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
