package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
)

// faqNamespace derives stable ids for FAQs that do not carry one, so
// re-indexing the same file updates rows instead of duplicating them.
var faqNamespace = uuid.MustParse("5b0f4f7e-2f38-4c1e-9a53-3f5d3c8a9e10")

// LoadFAQs reads a YAML list of {id?, question, answer} entries.
func LoadFAQs(path string) ([]model.FAQ, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read faqs: %w", err)
	}
	return ParseFAQs(b)
}

func ParseFAQs(b []byte) ([]model.FAQ, error) {
	var faqs []model.FAQ
	if err := yaml.Unmarshal(b, &faqs); err != nil {
		return nil, fmt.Errorf("parse faqs: %w", err)
	}
	for i := range faqs {
		faqs[i].Question = strings.TrimSpace(faqs[i].Question)
		faqs[i].Answer = strings.TrimSpace(faqs[i].Answer)
		if faqs[i].ID == "" {
			faqs[i].ID = uuid.NewSHA1(faqNamespace, []byte(faqs[i].Question)).String()
		}
	}
	return faqs, nil
}
