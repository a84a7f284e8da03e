package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"copyengine/internal/copygen"
	"copyengine/internal/services"
)

const (
	minSellingPoints = 3
	maxSellingPoints = 5
)

// DecodeTask reads and validates a transcription request.
func DecodeTask(r io.Reader) (TaskRequest, error) {
	var req TaskRequest
	if err := decode(r, &req); err != nil {
		return TaskRequest{}, err
	}
	var problems fieldProblems
	problems.required("shareText", req.ShareText)
	problems.required("clientRequestId", req.ClientRequestID)
	if err := problems.err(); err != nil {
		return TaskRequest{}, err
	}
	return req, nil
}

// DecodeCopyVariants reads a rewrite request and converts it to the engine
// request with defaults applied.
func DecodeCopyVariants(r io.Reader) (copygen.RewriteRequest, error) {
	var req CopyVariantsRequest
	if err := decode(r, &req); err != nil {
		return copygen.RewriteRequest{}, err
	}
	var problems fieldProblems
	problems.required("sourceText", req.SourceText)
	problems.literal("mode", req.Mode, ModeRewrite)
	problems.variantCount(req.VariantCount)
	problems.literal("strictness", req.Strictness, copygen.StrictnessStrict)
	if err := problems.err(); err != nil {
		return copygen.RewriteRequest{}, err
	}
	return copygen.RewriteRequest{
		SourceText:   req.SourceText,
		VariantCount: copygen.DefaultVariantCount,
		Strictness:   copygen.StrictnessStrict,
	}, nil
}

// DecodeProductVariants reads a product-adapt request and converts it to
// the engine request with defaults applied.
func DecodeProductVariants(r io.Reader) (copygen.ProductRequest, error) {
	var req ProductVariantsRequest
	if err := decode(r, &req); err != nil {
		return copygen.ProductRequest{}, err
	}
	var problems fieldProblems
	problems.required("sourceText", req.SourceText)
	problems.literal("mode", req.Mode, ModeProductAdapt)
	problems.variantCount(req.VariantCount)
	problems.literal("strictness", req.Strictness, copygen.StrictnessStrict)
	problems.product(req.ProductInfo)
	if err := problems.err(); err != nil {
		return copygen.ProductRequest{}, err
	}
	return copygen.ProductRequest{
		SourceText:   req.SourceText,
		VariantCount: copygen.DefaultVariantCount,
		Strictness:   copygen.StrictnessStrict,
		Product:      req.ProductInfo,
	}, nil
}

func decode(r io.Reader, dst any) error {
	if err := json.NewDecoder(r).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.Fail(services.ErrInvalidInput, "request body is empty", nil)
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.Fail(services.ErrInvalidInput, "request body exceeds 1mb", err)
		}
		return services.Fail(services.ErrInvalidInput, "request body is not valid json", err)
	}
	return nil
}

type fieldProblems []string

func (p *fieldProblems) add(field, format string, args ...any) {
	*p = append(*p, field+": "+fmt.Sprintf(format, args...))
}

func (p *fieldProblems) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		p.add(field, "is required")
	}
}

func (p *fieldProblems) literal(field, value, want string) {
	if value != "" && value != want {
		p.add(field, "must be %q", want)
	}
}

func (p *fieldProblems) variantCount(value *int) {
	if value != nil && *value != copygen.DefaultVariantCount {
		p.add("variantCount", "must be %d", copygen.DefaultVariantCount)
	}
}

func (p *fieldProblems) product(info copygen.ProductInfo) {
	p.required("productInfo.productName", info.ProductName)
	p.required("productInfo.category", info.Category)
	p.required("productInfo.targetAudience", info.TargetAudience)
	p.required("productInfo.cta", info.CTA)
	if n := len(info.SellingPoints); n < minSellingPoints || n > maxSellingPoints {
		p.add("productInfo.sellingPoints", "needs %d to %d entries, got %d", minSellingPoints, maxSellingPoints, n)
	}
	p.nonEmptyEntries("productInfo.sellingPoints", info.SellingPoints)
	p.nonEmptyEntries("productInfo.forbiddenWords", info.ForbiddenWords)
	p.nonEmptyEntries("productInfo.complianceNotes", info.ComplianceNotes)
}

func (p *fieldProblems) nonEmptyEntries(field string, values []string) {
	for i, value := range values {
		if strings.TrimSpace(value) == "" {
			p.add(fmt.Sprintf("%s[%d]", field, i), "must not be empty")
		}
	}
}

func (p fieldProblems) err() error {
	if len(p) == 0 {
		return nil
	}
	return services.Fail(services.ErrInvalidInput, strings.Join(p, "; "), nil)
}

// ValidateProductInfo applies the productInfo rules without a request body.
func ValidateProductInfo(info copygen.ProductInfo) error {
	var problems fieldProblems
	problems.product(info)
	return problems.err()
}
