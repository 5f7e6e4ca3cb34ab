package analyze

import (
	"fmt"

	"github.com/veritrust/veritrust/internal/llm"
	"github.com/veritrust/veritrust/internal/models"
)

// SystemInstruction anchors every inference call regardless of mode.
const SystemInstruction = "You are a professional fact-checker and digital forensics expert. " +
	"Your goal is to provide unbiased, explainable analysis of content for misinformation " +
	"and deepfake manipulation. Provide JSON output following the schema strictly. " +
	"Do not censor content, just analyze it."

var modeGuidance = map[models.AnalysisMode]string{
	models.ModeStandard: "",
	models.ModeLegal: "Assess the content as potential digital evidence. Populate legalAssessment " +
		"with its probative value, a court-ready summary, forensic red flags, an expert " +
		"recommendation, and the applicable statutory citations.",
	models.ModeEditorial: "Evaluate editorial integrity: sourcing quality, attribution, selective " +
		"framing, headline accuracy, and adherence to journalistic standards.",
	models.ModeFraud: "Focus on scam and social-engineering markers: urgency pressure, payment " +
		"or credential requests, impersonation, and too-good-to-be-true offers. Populate " +
		"fraudRisk and emotionalSignals in detail.",
	models.ModeTruthLens: "Assess the content as potential digital evidence. Populate legalAssessment " +
		"with its probative value, a court-ready summary, forensic red flags, an expert " +
		"recommendation, and the applicable statutory citations. Additionally populate " +
		"legalAssessment.investigativeIntel with propagation radar trends, a manipulation " +
		"timeline, impersonation matches, and jurisdictional briefs.",
}

// BuildInstruction assembles the natural-language instruction for the given
// encoded input and analysis mode.
func BuildInstruction(in *Input, mode models.AnalysisMode) string {
	var base string
	switch in.Type {
	case models.ContentTypeText:
		base = fmt.Sprintf("Act as an expert misinformation and fact-checking analyst. "+
			"Analyze the following text for potential deepfake generation patterns, logical "+
			"fallacies, emotional manipulation, or known misinformation tropes.\n"+
			"Text to analyze: %q", in.Text)
	case models.ContentTypeImage:
		base = "Analyze this image for signs of AI generation (GANs, diffusion patterns), " +
			"digital manipulation (splicing, cloning), or deepfake tampering. Look for edge " +
			"inconsistencies, unnatural lighting, pixel artifacts, or semantic errors."
	case models.ContentTypeVideo:
		base = "Analyze this video frame for deepfake characteristics: lip-sync errors, " +
			"unnatural blinking, facial blurring, or temporal inconsistencies. Provide an " +
			"assessment of its authenticity."
	}

	if guidance := modeGuidance[mode]; guidance != "" {
		base += "\n\n" + guidance
	}
	return base
}

// BuildSchema declares the output shape for the given mode. Legal and
// truthlens modes extend the base shape with the legal assessment record.
func BuildSchema(mode models.AnalysisMode) *llm.Schema {
	properties := map[string]*llm.Schema{
		"fakeProbability": {
			Type:        "number",
			Description: "Score from 0 to 100 representing likelihood of being fake/manipulated.",
		},
		"riskLevel": {
			Type:        "string",
			Description: "low, medium, or high based on the score.",
		},
		"confidenceScore": {
			Type:        "number",
			Description: "Model's confidence in this assessment (0-1).",
		},
		"reasoning": {
			Type:        "string",
			Description: "Detailed explanation of the findings and potential red flags.",
		},
		"flaggedRegions": {
			Type:        "array",
			Items:       &llm.Schema{Type: "string"},
			Description: "Specific elements or quotes that are suspicious.",
		},
		"isMisinformation": {
			Type:        "boolean",
			Description: "Boolean flag if content is definitely identified as misleading.",
		},
		"originLabel": {
			Type:        "string",
			Description: "human-created, ai-generated, or mixed-modified.",
		},
		"fraudRisk": {
			Type: "object",
			Properties: map[string]*llm.Schema{
				"isScam":       {Type: "boolean"},
				"patterns":     {Type: "array", Items: &llm.Schema{Type: "string"}},
				"urgencyLevel": {Type: "string", Description: "low, medium, or high."},
			},
			Required: []string{"isScam", "patterns", "urgencyLevel"},
		},
		"emotionalSignals": {
			Type: "object",
			Properties: map[string]*llm.Schema{
				"fear":               {Type: "number", Description: "0-100."},
				"anger":              {Type: "number", Description: "0-100."},
				"urgency":            {Type: "number", Description: "0-100."},
				"manipulationTactic": {Type: "string"},
			},
			Required: []string{"fear", "anger", "urgency", "manipulationTactic"},
		},
		"culturalContext": {
			Type:        "string",
			Description: "Regional or cultural framing relevant to interpreting the content.",
		},
		"fingerprint": {
			Type:        "string",
			Description: "Short opaque identity string for content matching.",
		},
		"publishRiskScore": {
			Type:        "number",
			Description: "0-100 risk of amplifying harm by republishing.",
		},
		"literacyTip": {
			Type:        "string",
			Description: "One media-literacy tip tailored to this content.",
		},
		"verificationHash": {
			Type:        "string",
			Description: "Opaque integrity artifact for this assessment.",
		},
	}

	required := []string{
		"fakeProbability", "riskLevel", "confidenceScore", "reasoning",
		"isMisinformation", "originLabel", "fingerprint", "publishRiskScore",
		"literacyTip", "verificationHash",
	}

	if mode == models.ModeLegal || mode == models.ModeTruthLens {
		legal := &llm.Schema{
			Type: "object",
			Properties: map[string]*llm.Schema{
				"probativeValue":       {Type: "string", Description: "Low, Moderate, or High."},
				"courtReadySummary":    {Type: "string"},
				"forensicRedFlags":     {Type: "array", Items: &llm.Schema{Type: "string"}},
				"expertRecommendation": {Type: "string"},
				"applicableLaws": {
					Type: "array",
					Items: &llm.Schema{
						Type: "object",
						Properties: map[string]*llm.Schema{
							"title":          {Type: "string"},
							"section":        {Type: "string"},
							"description":    {Type: "string"},
							"relevanceLevel": {Type: "string", Description: "Direct, Supporting, or Contextual."},
							"category":       {Type: "string", Description: "Fraud, Privacy, Defamation, Identity, Copyright, or Evidence."},
						},
						Required: []string{"title", "section", "description", "relevanceLevel", "category"},
					},
				},
			},
			Required: []string{"probativeValue", "courtReadySummary", "forensicRedFlags", "expertRecommendation", "applicableLaws"},
		}

		if mode == models.ModeTruthLens {
			legal.Properties["investigativeIntel"] = &llm.Schema{
				Type: "object",
				Properties: map[string]*llm.Schema{
					"radarTrends": {
						Type: "array",
						Items: &llm.Schema{
							Type: "object",
							Properties: map[string]*llm.Schema{
								"label":  {Type: "string"},
								"count":  {Type: "string"},
								"region": {Type: "string"},
								"status": {Type: "string", Description: "Monitor, Alert, or Critical."},
							},
						},
					},
					"timeline": {
						Type: "array",
						Items: &llm.Schema{
							Type: "object",
							Properties: map[string]*llm.Schema{
								"label": {Type: "string"},
								"desc":  {Type: "string"},
								"time":  {Type: "string"},
								"stage": {Type: "string", Description: "Authentic, Manipulated, or Coordinated."},
							},
						},
					},
					"impersonationHits": {
						Type: "array",
						Items: &llm.Schema{
							Type: "object",
							Properties: map[string]*llm.Schema{
								"name":  {Type: "string"},
								"risk":  {Type: "string"},
								"count": {Type: "string"},
							},
						},
					},
					"crossCaseMatch": {
						Type: "object",
						Properties: map[string]*llm.Schema{
							"similarity":    {Type: "number"},
							"caseReference": {Type: "string"},
							"description":   {Type: "string"},
						},
					},
					"jurisdictionalBriefs": {
						Type:        "object",
						Description: "Map of jurisdiction name to a short brief.",
					},
				},
			}
		}

		properties["legalAssessment"] = legal
		required = append(required, "legalAssessment")
	}

	return &llm.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}
