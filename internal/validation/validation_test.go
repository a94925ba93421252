package validation

import "testing"

func TestIsValidCouponCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"simple code", "WELCOME200", true},
		{"with separator", "NEW_YEAR-25", true},
		{"minimal length", "ABC", true},
		{"too short", "AB", false},
		{"empty", "", false},
		{"lowercase", "welcome200", false},
		{"spaces", "WELCOME 200", false},
		{"non-ascii", "СКИДКА", false},
		{"too long", "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidCouponCode(tt.code); got != tt.want {
				t.Errorf("IsValidCouponCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsValidSlug(t *testing.T) {
	tests := []struct {
		name string
		slug string
		want bool
	}{
		{"simple", "golang-basics", true},
		{"with digits", "web-dev-101", true},
		{"single char", "c", true},
		{"empty", "", false},
		{"uppercase", "Golang-Basics", false},
		{"leading hyphen", "-golang", false},
		{"trailing hyphen", "golang-", false},
		{"underscore", "golang_basics", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidSlug(tt.slug); got != tt.want {
				t.Errorf("IsValidSlug(%q) = %v, want %v", tt.slug, got, tt.want)
			}
		})
	}
}
