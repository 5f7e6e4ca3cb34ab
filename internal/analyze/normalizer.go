package analyze

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veritrust/veritrust/internal/llm"
	"github.com/veritrust/veritrust/internal/models"
)

// Normalization failure classes. ErrEngineReply covers replies that are not
// JSON at all; ErrNormalization covers parseable replies that violate the
// declared schema or the documented ranges. Neither is retryable.
var (
	ErrEngineReply   = errors.New("engine communication failure")
	ErrNormalization = errors.New("engine reply failed validation")
)

// Normalizer turns a raw model reply into a fully-typed VerificationResult,
// failing closed on any missing required key, wrong primitive type or
// out-of-range score.
type Normalizer struct {
	previewLength int
}

// NewNormalizer creates a normalizer with the configured content preview cap.
func NewNormalizer(previewLength int) *Normalizer {
	return &Normalizer{previewLength: previewLength}
}

// Normalize parses and validates raw against schema, then overlays the
// locally-owned fields (identifier, timestamp, type, mode, content preview,
// locally computed content hash). Local fields are written after the parsed
// overlay, so local values always win for those keys.
func (n *Normalizer) Normalize(raw string, in *Input, mode models.AnalysisMode, schema *llm.Schema) (*models.VerificationResult, error) {
	cleaned := extractJSON(raw)

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngineReply, err)
	}

	if err := validateObject(payload, schema, ""); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNormalization, err)
	}

	// riskLevel arrives in whatever casing the model chose; the stored set
	// is lowercase.
	if level, ok := payload["riskLevel"].(string); ok {
		normalized := models.RiskLevel(strings.ToLower(strings.TrimSpace(level)))
		switch normalized {
		case models.RiskLow, models.RiskMedium, models.RiskHigh:
			payload["riskLevel"] = string(normalized)
		default:
			return nil, fmt.Errorf("%w: riskLevel %q is not one of low/medium/high", ErrNormalization, level)
		}
	}
	if origin, ok := payload["originLabel"].(string); ok {
		payload["originLabel"] = normalizeOrigin(origin)
	}

	if p, ok := payload["fakeProbability"].(float64); ok && (p < 0 || p > 100) {
		return nil, fmt.Errorf("%w: fakeProbability %v outside [0,100]", ErrNormalization, p)
	}
	if c, ok := payload["confidenceScore"].(float64); ok && (c < 0 || c > 1) {
		return nil, fmt.Errorf("%w: confidenceScore %v outside [0,1]", ErrNormalization, c)
	}

	// Round-trip the validated payload into the typed record.
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNormalization, err)
	}
	var result models.VerificationResult
	if err := json.Unmarshal(buf, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNormalization, err)
	}

	result.ID = uuid.New().String()
	result.CreatedAt = time.Now().UTC()
	result.Type = in.Type
	result.Mode = mode
	result.Content = n.preview(in)
	result.ContentHash = contentHash(in)

	return &result, nil
}

func (n *Normalizer) preview(in *Input) string {
	if in.Type == models.ContentTypeText {
		runes := []rune(in.RawText)
		if len(runes) > n.previewLength {
			return string(runes[:n.previewLength])
		}
		return in.RawText
	}
	if in.FileName != "" {
		return in.FileName
	}
	return "media_file"
}

func contentHash(in *Input) string {
	h := sha256.New()
	if in.Type == models.ContentTypeText {
		h.Write([]byte(in.RawText))
	} else {
		h.Write(in.Media)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalizeOrigin(origin string) string {
	s := strings.ToLower(strings.TrimSpace(origin))
	s = strings.NewReplacer("/", "-", " ", "-", "_", "-").Replace(s)
	return s
}

var fenceRe = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// extractJSON tolerates markdown code fences and surrounding prose around
// the JSON object.
func extractJSON(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```") {
		if matches := fenceRe.FindStringSubmatch(response); len(matches) > 1 {
			response = matches[1]
		}
	}

	if !strings.HasPrefix(response, "{") {
		start := strings.Index(response, "{")
		end := strings.LastIndex(response, "}")
		if start >= 0 && end > start {
			response = response[start : end+1]
		}
	}

	return response
}

// validateObject checks required keys and primitive types against the
// declared schema. Optional keys that are absent or null are skipped.
func validateObject(value map[string]interface{}, schema *llm.Schema, path string) error {
	for _, req := range schema.Required {
		v, ok := value[req]
		if !ok || v == nil {
			return fmt.Errorf("missing required field %s", joinPath(path, req))
		}
	}

	for name, prop := range schema.Properties {
		v, ok := value[name]
		if !ok || v == nil {
			continue
		}
		if err := checkType(v, prop, joinPath(path, name)); err != nil {
			return err
		}
	}

	return nil
}

func checkType(v interface{}, schema *llm.Schema, path string) error {
	switch schema.Type {
	case "string":
		if _, ok := v.(string); !ok {
			return fmt.Errorf("field %s must be a string", path)
		}
	case "number", "integer":
		if _, ok := v.(float64); !ok {
			return fmt.Errorf("field %s must be a number", path)
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("field %s must be a boolean", path)
		}
	case "array":
		items, ok := v.([]interface{})
		if !ok {
			return fmt.Errorf("field %s must be an array", path)
		}
		if schema.Items != nil {
			for i, item := range items {
				if item == nil {
					continue
				}
				if err := checkType(item, schema.Items, fmt.Sprintf("%s[%d]", path, i)); err != nil {
					return err
				}
			}
		}
	case "object":
		obj, ok := v.(map[string]interface{})
		if !ok {
			return fmt.Errorf("field %s must be an object", path)
		}
		return validateObject(obj, schema, path)
	}
	return nil
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
