// Package analyze implements the content verification pipeline: input
// encoding, prompt and schema construction, the remote inference call and
// strict result normalization.
package analyze

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/veritrust/veritrust/internal/models"
)

// ErrInvalidInput marks user-supplied content that cannot be encoded. These
// errors are non-fatal to the session; resubmission is allowed.
var ErrInvalidInput = errors.New("invalid input")

// Input is the encoded request payload for the inference call.
type Input struct {
	Type     models.ContentType
	Text     string // plain text for analysis, markup stripped
	RawText  string // text exactly as submitted
	Media    []byte
	MIMEType string
	FileName string
}

// Encoder converts user-selected input into the inference payload shape.
type Encoder struct {
	maxUploadBytes int64
}

// NewEncoder creates an encoder with an explicit media size bound.
func NewEncoder(maxUploadBytes int64) *Encoder {
	return &Encoder{maxUploadBytes: maxUploadBytes}
}

var dataURIRe = regexp.MustCompile(`^data:([^;,]+);base64,`)

// Encode validates and converts a verify request. Exactly one of text or
// media must be present for the declared content type.
func (e *Encoder) Encode(req *models.VerifyRequest) (*Input, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown content type %q", ErrInvalidInput, req.Type)
	}

	switch req.Type {
	case models.ContentTypeText:
		if strings.TrimSpace(req.Content) == "" {
			return nil, fmt.Errorf("%w: text content is required", ErrInvalidInput)
		}
		if req.Media != "" {
			return nil, fmt.Errorf("%w: text analysis accepts no media payload", ErrInvalidInput)
		}
		return &Input{
			Type:    req.Type,
			Text:    StripHTML(req.Content),
			RawText: req.Content,
		}, nil

	case models.ContentTypeImage, models.ContentTypeVideo:
		if req.Media == "" {
			return nil, fmt.Errorf("%w: media payload is required", ErrInvalidInput)
		}
		if req.Content != "" {
			return nil, fmt.Errorf("%w: media analysis accepts no text content", ErrInvalidInput)
		}

		payload := req.Media
		mimeType := req.MIMEType
		if m := dataURIRe.FindStringSubmatch(payload); m != nil {
			// Strip the data:<mime>;base64, prefix; the detected MIME type
			// travels separately from the raw bytes.
			mimeType = m[1]
			payload = payload[len(m[0]):]
		}

		wantPrefix := "image/"
		if req.Type == models.ContentTypeVideo {
			wantPrefix = "video/"
		}
		if !strings.HasPrefix(mimeType, wantPrefix) {
			return nil, fmt.Errorf("%w: expected a %s* file, got %q", ErrInvalidInput, wantPrefix, mimeType)
		}

		// Reject on encoded length first so an oversized payload is never
		// base64-decoded into a second in-memory copy.
		if int64(len(payload)) > int64(base64.StdEncoding.EncodedLen(int(e.maxUploadBytes))) {
			return nil, fmt.Errorf("%w: media exceeds the %d byte upload limit", ErrInvalidInput, e.maxUploadBytes)
		}

		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: media payload is not valid base64", ErrInvalidInput)
		}
		if int64(len(data)) > e.maxUploadBytes {
			return nil, fmt.Errorf("%w: media exceeds the %d byte upload limit", ErrInvalidInput, e.maxUploadBytes)
		}

		return &Input{
			Type:     req.Type,
			Media:    data,
			MIMEType: mimeType,
			FileName: req.FileName,
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown content type %q", ErrInvalidInput, req.Type)
}

var htmlTagRe = regexp.MustCompile(`(?s)<[a-zA-Z!/][^>]*>`)

// StripHTML reduces pasted article or post markup to its visible text.
// Plain text passes through unchanged.
func StripHTML(s string) string {
	if !htmlTagRe.MatchString(s) {
		return s
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if b.Len() == 0 {
		return s
	}
	return b.String()
}
