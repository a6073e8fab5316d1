package usecase

import (
	"testing"

	"github.com/V4T54L/vetclinic/internal/domain"
)

func TestBrandingFor(t *testing.T) {
	tenant := &domain.Tenant{
		Name:      "Happy Paws",
		Subdomain: "happypaws",
		Status:    domain.TenantStatusActive,
		Theme: domain.Theme{
			Palette:  domain.Palette{Primary: "#ff0000"},
			LogoURL:  "https://cdn.example.com/happypaws.png",
			Features: map[string]bool{FeatureWhatsApp: true, FeatureInventory: false},
		},
	}

	b := BrandingFor(tenant)

	if b.ClinicName != "Happy Paws" || b.Subdomain != "happypaws" {
		t.Errorf("unexpected identity: %+v", b)
	}
	if b.Palette.Primary != "#ff0000" {
		t.Errorf("primary = %q, want tenant override", b.Palette.Primary)
	}
	if b.Palette.Secondary != BaselineTheme().Palette.Secondary {
		t.Errorf("secondary = %q, want baseline", b.Palette.Secondary)
	}
	if !b.Features[FeatureWhatsApp] {
		t.Error("tenant-enabled feature should be on")
	}
	if b.Features[FeatureInventory] {
		t.Error("tenant-disabled feature should be off")
	}
	if !b.Features[FeatureAppointments] {
		t.Error("baseline feature should stay on")
	}
	if b.LogoURL != tenant.Theme.LogoURL {
		t.Errorf("logo = %q", b.LogoURL)
	}
}

func TestBrandingDoesNotMutateBaseline(t *testing.T) {
	tenant := &domain.Tenant{Theme: domain.Theme{Features: map[string]bool{FeatureVideoCalls: true}}}
	BrandingFor(tenant)

	if BaselineTheme().Features[FeatureVideoCalls] {
		t.Error("baseline theme was mutated")
	}
}
