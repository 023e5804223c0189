package commerce

import (
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/chative-commerce/storefront-agent/internal/agent/model"
	"github.com/chative-commerce/storefront-agent/internal/agent/tools"
	"github.com/chative-commerce/storefront-agent/pkg/retry"
)

const (
	storefrontService = "shopify-storefront"
	adminService      = "shopify-admin"

	storefrontTokenHeader = "X-Shopify-Storefront-Access-Token"
	adminTokenHeader      = "X-Shopify-Access-Token"
)

// Factory hands out per-tenant Shopify clients sharing one HTTP client.
type Factory struct {
	http       *resty.Client
	apiVersion string
	policy     retry.Policy
}

func NewFactory(cfg model.CommerceConfig, policy retry.Policy) *Factory {
	client := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	version := cfg.APIVersion
	if version == "" {
		version = "2024-10"
	}
	return &Factory{http: client, apiVersion: version, policy: policy}
}

// Storefront returns the public client of a tenant, or false when the tenant
// has no storefront credentials.
func (f *Factory) Storefront(cfg *model.TenantConfig) (tools.Storefront, bool) {
	c, ok := f.StorefrontClient(cfg)
	if !ok {
		return nil, false
	}
	return c, true
}

// StorefrontClient is Storefront with the concrete type, for catalog indexing.
func (f *Factory) StorefrontClient(cfg *model.TenantConfig) (*StorefrontClient, bool) {
	if cfg == nil || !cfg.Commerce.HasStorefront() {
		return nil, false
	}
	return &StorefrontClient{gql: &graphqlClient{
		http:     f.http,
		service:  storefrontService,
		endpoint: fmt.Sprintf("%s/api/%s/graphql.json", shopBaseURL(cfg.Commerce.StoreDomain), f.apiVersion),
		header:   storefrontTokenHeader,
		token:    cfg.Commerce.StorefrontToken,
		policy:   f.policy,
	}}, true
}

func (f *Factory) Admin(cfg *model.TenantConfig) (tools.Admin, bool) {
	if cfg == nil || !cfg.Commerce.HasAdmin() {
		return nil, false
	}
	return &AdminClient{gql: &graphqlClient{
		http:     f.http,
		service:  adminService,
		endpoint: fmt.Sprintf("%s/admin/api/%s/graphql.json", shopBaseURL(cfg.Commerce.StoreDomain), f.apiVersion),
		header:   adminTokenHeader,
		token:    cfg.Commerce.AdminToken,
		policy:   f.policy,
	}}, true
}

// shopBaseURL accepts a bare domain ("shop.myshopify.com") or a full URL.
func shopBaseURL(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

var _ tools.CommerceProvider = (*Factory)(nil)
