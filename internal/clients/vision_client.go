// Package clients holds outbound HTTP clients shared across stages:
// a remote vision-model OCR tier for the OCR Extractor's cascade (C9)
// and an OpenAI-compatible/native LLM backend for the Invoker (C21).
// Adapted from a MageAgentClient, which delegated all model
// selection to a remote vision-routing service rather than hardcoding a
// model in the worker; generalized here to a plain resty client against
// any vision-OCR endpoint speaking the same request/response shape.
package clients

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/adverant/idp-retrieval-platform/internal/idp/ocrextract"
	"github.com/adverant/idp-retrieval-platform/internal/logging"
)

// visionOCRRequest mirrors a VisionOCRRequest payload, trimmed
// to the fields the cascade actually needs.
type visionOCRRequest struct {
	Image          string `json:"image"`
	Format         string `json:"format"`
	PreferAccuracy bool   `json:"preferAccuracy"`
	Language       string `json:"language"`
}

type visionOCRResponse struct {
	Success bool          `json:"success"`
	Data    visionOCRData `json:"data"`
	Message string        `json:"message"`
}

type visionOCRData struct {
	Words      []visionWord `json:"words"`
	Confidence float64      `json:"confidence"`
	ModelUsed  string       `json:"modelUsed"`
}

type visionWord struct {
	Text string  `json:"text"`
	X1   int     `json:"x1"`
	Y1   int     `json:"y1"`
	X2   int     `json:"x2"`
	Y2   int     `json:"y2"`
	Conf float64 `json:"confidence"`
}

// VisionClient is a remote vision-model OCR tier, satisfying
// ocrextract.Engine so it can sit at tier 2 or tier 3 of the cascade
// behind the cheap Tesseract tier.
type VisionClient struct {
	name           string
	baseURL        string
	language       string
	preferAccuracy bool
	http           *resty.Client
	log            *logging.Logger
}

// NewVisionClient constructs a VisionClient. name identifies the tier in
// logs ("vision-mid" / "vision-high"); preferAccuracy is forwarded to the
// remote service as a hint to pick its highest-accuracy model.
func NewVisionClient(name, baseURL, language string, preferAccuracy bool) *VisionClient {
	return &VisionClient{
		name:           name,
		baseURL:        baseURL,
		language:       language,
		preferAccuracy: preferAccuracy,
		http:           resty.New().SetBaseURL(baseURL).SetTimeout(120_000_000_000),
		log:            logging.NewLogger(name),
	}
}

// Name identifies this engine within the OCR cascade.
func (c *VisionClient) Name() string { return c.name }

// Recognize delegates OCR for one page image to the remote vision model.
func (c *VisionClient) Recognize(ctx context.Context, image []byte) ([]ocrextract.Word, float64, error) {
	reqBody := visionOCRRequest{
		Image:          base64.StdEncoding.EncodeToString(image),
		Format:         "base64",
		PreferAccuracy: c.preferAccuracy,
		Language:       c.language,
	}

	var out visionOCRResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&out).
		Post("/api/internal/vision/extract-text")
	if err != nil {
		return nil, 0, fmt.Errorf("vision request failed: %w", err)
	}
	if resp.IsError() {
		return nil, 0, fmt.Errorf("vision service returned status %d", resp.StatusCode())
	}
	if !out.Success {
		return nil, 0, fmt.Errorf("vision service reported failure: %s", out.Message)
	}

	c.log.Debug("vision OCR complete", "modelUsed", out.Data.ModelUsed, "confidence", out.Data.Confidence, "words", len(out.Data.Words))

	words := make([]ocrextract.Word, len(out.Data.Words))
	for i, w := range out.Data.Words {
		words[i] = ocrextract.Word{
			Text: w.Text,
			BBox: [4]int{w.X1, w.Y1, w.X2, w.Y2},
			Conf: w.Conf,
		}
	}
	return words, out.Data.Confidence, nil
}
