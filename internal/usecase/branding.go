package usecase

import (
	"maps"

	"github.com/V4T54L/vetclinic/internal/domain"
)

// Feature flags understood by the clinic frontend.
const (
	FeatureAppointments = "appointments"
	FeatureInvoicing    = "invoicing"
	FeatureInventory    = "inventory"
	FeatureVaccinations = "vaccinations"
	FeatureWhatsApp     = "whatsapp"
	FeatureVideoCalls   = "video_calls"
)

// BaselineTheme is applied beneath every tenant's own theme.
func BaselineTheme() domain.Theme {
	return domain.Theme{
		Palette: domain.Palette{
			Primary:   "#1f7a8c",
			Secondary: "#022b3a",
			Accent:    "#e1e5f2",
		},
		Features: map[string]bool{
			FeatureAppointments: true,
			FeatureInvoicing:    true,
			FeatureInventory:    true,
			FeatureVaccinations: true,
			FeatureWhatsApp:     false,
			FeatureVideoCalls:   false,
		},
	}
}

// Branding is the presentation config derived from a resolved tenant.
type Branding struct {
	ClinicName string          `json:"clinic_name"`
	Subdomain  string          `json:"subdomain"`
	Palette    domain.Palette  `json:"palette"`
	LogoURL    string          `json:"logo_url,omitempty"`
	FaviconURL string          `json:"favicon_url,omitempty"`
	Features   map[string]bool `json:"features"`
	Status     string          `json:"status"`
}

// BrandingFor merges t's theme over the baseline. Empty tenant fields keep
// the baseline value; feature flags set by the tenant override the baseline.
func BrandingFor(t *domain.Tenant) Branding {
	base := BaselineTheme()
	theme := t.Theme

	palette := base.Palette
	if theme.Palette.Primary != "" {
		palette.Primary = theme.Palette.Primary
	}
	if theme.Palette.Secondary != "" {
		palette.Secondary = theme.Palette.Secondary
	}
	if theme.Palette.Accent != "" {
		palette.Accent = theme.Palette.Accent
	}

	features := maps.Clone(base.Features)
	maps.Copy(features, theme.Features)

	return Branding{
		ClinicName: t.Name,
		Subdomain:  t.Subdomain,
		Palette:    palette,
		LogoURL:    theme.LogoURL,
		FaviconURL: theme.FaviconURL,
		Features:   features,
		Status:     string(t.Status),
	}
}
