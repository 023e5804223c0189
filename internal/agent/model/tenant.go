package model

// TenantConfig is one storefront's configuration.
type TenantConfig struct {
	ID                 string
	Name               string
	CustomInstructions string
	Commerce           CommerceCredentials
}

// CommerceCredentials are optional; each surface is usable only when its token is set.
type CommerceCredentials struct {
	StoreDomain     string
	StorefrontToken string
	AdminToken      string
}

// HasStorefront reports whether the public commerce surface is configured.
func (c CommerceCredentials) HasStorefront() bool {
	return c.StoreDomain != "" && c.StorefrontToken != ""
}

// HasAdmin reports whether the privileged commerce surface is configured.
func (c CommerceCredentials) HasAdmin() bool {
	return c.StoreDomain != "" && c.AdminToken != ""
}
