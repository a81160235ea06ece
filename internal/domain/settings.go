package domain

import "time"

// Settings holds account-level configuration supplied by the user.
type Settings struct {
	TotalCapital   float64   `json:"totalCapital"`
	DefaultCharges float64   `json:"defaultCharges"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// RawSettings is the loosely-shaped persisted/user-submitted form.
type RawSettings struct {
	TotalCapital   *float64 `json:"totalCapital"`
	DefaultCharges *float64 `json:"defaultCharges"`
}

// NormalizeSettings converts a raw settings document into a Settings value
// with explicit defaults. Negative values are clamped to zero.
func NormalizeSettings(raw RawSettings) Settings {
	s := Settings{}
	if raw.TotalCapital != nil && *raw.TotalCapital > 0 {
		s.TotalCapital = *raw.TotalCapital
	}
	if raw.DefaultCharges != nil && *raw.DefaultCharges > 0 {
		s.DefaultCharges = *raw.DefaultCharges
	}
	return s
}
