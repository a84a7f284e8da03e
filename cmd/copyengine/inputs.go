package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"copyengine/internal/copygen"
)

// sourceFlags reads the source script from --source or --source-file. A
// file of "-" reads stdin.
type sourceFlags struct {
	text string
	file string
}

func (s *sourceFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.text, "source", "", "Source script text")
	cmd.Flags().StringVar(&s.file, "source-file", "", "Read the source script from a file (- for stdin)")
}

func (s *sourceFlags) read(stdin io.Reader) (string, error) {
	if s.text != "" && s.file != "" {
		return "", errors.New("use either --source or --source-file, not both")
	}
	if s.file == "" {
		if strings.TrimSpace(s.text) == "" {
			return "", errors.New("--source or --source-file is required")
		}
		return s.text, nil
	}
	var (
		data []byte
		err  error
	)
	if s.file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(s.file)
	}
	if err != nil {
		return "", fmt.Errorf("read source: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("source is empty")
	}
	return text, nil
}

// productFlags collects product info from flags, optionally seeded from a
// JSON file in the API's productInfo shape. Flags override file values.
type productFlags struct {
	file            string
	name            string
	category        string
	sellingPoints   []string
	audience        string
	cta             string
	forbiddenWords  []string
	complianceNotes []string
}

func (p *productFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.file, "product-file", "", "JSON file with productInfo fields")
	cmd.Flags().StringVar(&p.name, "product-name", "", "Product name")
	cmd.Flags().StringVar(&p.category, "category", "", "Product category")
	cmd.Flags().StringArrayVar(&p.sellingPoints, "selling-point", nil, "Selling point (repeat 3 to 5 times)")
	cmd.Flags().StringVar(&p.audience, "audience", "", "Target audience")
	cmd.Flags().StringVar(&p.cta, "cta", "", "Call to action")
	cmd.Flags().StringArrayVar(&p.forbiddenWords, "forbidden", nil, "Forbidden word (repeatable)")
	cmd.Flags().StringArrayVar(&p.complianceNotes, "compliance-note", nil, "Compliance note (repeatable)")
}

func (p *productFlags) build() (copygen.ProductInfo, error) {
	var info copygen.ProductInfo
	if p.file != "" {
		data, err := os.ReadFile(p.file)
		if err != nil {
			return info, fmt.Errorf("read product file: %w", err)
		}
		if err := json.Unmarshal(data, &info); err != nil {
			return info, fmt.Errorf("parse product file: %w", err)
		}
	}
	setIfNotEmpty(&info.ProductName, p.name)
	setIfNotEmpty(&info.Category, p.category)
	setIfNotEmpty(&info.TargetAudience, p.audience)
	setIfNotEmpty(&info.CTA, p.cta)
	if len(p.sellingPoints) > 0 {
		info.SellingPoints = p.sellingPoints
	}
	if len(p.forbiddenWords) > 0 {
		info.ForbiddenWords = p.forbiddenWords
	}
	if len(p.complianceNotes) > 0 {
		info.ComplianceNotes = p.complianceNotes
	}
	return info, nil
}

func (p *productFlags) set() bool {
	return p.file != "" || p.name != "" || len(p.sellingPoints) > 0
}

func setIfNotEmpty(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}
