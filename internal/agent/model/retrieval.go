package model

import "github.com/shopspring/decimal"

// ProductHit is a catalog retrieval hit. Similarity is in [0,1].
type ProductHit struct {
	ID          string          `json:"id"`
	Handle      string          `json:"handle"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency,omitempty"`
	VariantID   string          `json:"variantId,omitempty"`
	Similarity  float64         `json:"similarity"`
}

// FAQHit is a help-article retrieval hit.
type FAQHit struct {
	ID         string  `json:"id"`
	Question   string  `json:"question"`
	Answer     string  `json:"answer"`
	Similarity float64 `json:"similarity"`
}

// SearchResult pairs the two corpora searched for one query.
type SearchResult struct {
	Catalog []ProductHit
	Help    []FAQHit
}

// FAQ is an indexable help article.
type FAQ struct {
	ID       string `yaml:"id" json:"id"`
	Question string `yaml:"question" json:"question"`
	Answer   string `yaml:"answer" json:"answer"`
}

// IndexedProduct is a catalog row ready to be written with its embedding.
type IndexedProduct struct {
	Product   Product
	Embedding []float32
}

// IndexedFAQ is a help row ready to be written with its embedding.
type IndexedFAQ struct {
	FAQ       FAQ
	Embedding []float32
}
