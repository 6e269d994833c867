package mediation

// Consent carries the three independent tri-state consent flags.
// A nil pointer means the signal is unknown.
type Consent struct {
	HasUserConsent  *bool `json:"has_user_consent,omitempty"`
	IsAgeRestricted *bool `json:"is_age_restricted,omitempty"`
	IsDoNotSell     *bool `json:"is_do_not_sell,omitempty"`
}

// Request holds the response parameters the framework passes on load and show
type Request struct {
	RequestID   string  `json:"request_id,omitempty"`
	PlacementID string  `json:"placement_id"`
	Testing     bool    `json:"testing,omitempty"`
	Consent     Consent `json:"consent"`
}

// InitParams holds initialization parameters
type InitParams struct {
	AppID   string `json:"app_id,omitempty"`
	Testing bool   `json:"testing,omitempty"`
}

// Bool returns a pointer to v, for building Consent values
func Bool(v bool) *bool {
	return &v
}
