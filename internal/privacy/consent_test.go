package privacy

import (
	"testing"

	"github.com/thenexusengine/tne_adtalos/internal/mediation"
	"github.com/thenexusengine/tne_adtalos/internal/sdk"
)

func TestTranslate(t *testing.T) {
	yes := mediation.Bool(true)
	no := mediation.Bool(false)

	tests := []struct {
		name        string
		consent     *bool
		ageRestrict *bool
		doNotSell   *bool
		expected    sdk.Privacy
	}{
		{
			name:        "consent given, adult, opted out of sale",
			consent:     yes,
			ageRestrict: no,
			doNotSell:   yes,
			expected: sdk.Privacy{
				GDPR:  sdk.PrivacyAuthorized,
				COPPA: sdk.PrivacyAuthorized,
				CCPA:  sdk.PrivacyUnauthorized,
			},
		},
		{
			name:        "consent refused, child, sale allowed",
			consent:     no,
			ageRestrict: yes,
			doNotSell:   no,
			expected: sdk.Privacy{
				GDPR:  sdk.PrivacyUnauthorized,
				COPPA: sdk.PrivacyUnauthorized,
				CCPA:  sdk.PrivacyAuthorized,
			},
		},
		{
			name: "all unknown",
			expected: sdk.Privacy{
				GDPR:  sdk.PrivacyUnknown,
				COPPA: sdk.PrivacyUnknown,
				CCPA:  sdk.PrivacyUnknown,
			},
		},
		{
			name:      "only do-not-sell known",
			doNotSell: no,
			expected: sdk.Privacy{
				GDPR:  sdk.PrivacyUnknown,
				COPPA: sdk.PrivacyUnknown,
				CCPA:  sdk.PrivacyAuthorized,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Translate(tt.consent, tt.ageRestrict, tt.doNotSell)
			if got != tt.expected {
				t.Errorf("expected %+v, got %+v", tt.expected, got)
			}
		})
	}
}

func TestFromConsent(t *testing.T) {
	got := FromConsent(mediation.Consent{HasUserConsent: mediation.Bool(true)})

	if got.GDPR != sdk.PrivacyAuthorized {
		t.Errorf("expected GDPR authorized, got %s", got.GDPR)
	}
	if got.COPPA != sdk.PrivacyUnknown || got.CCPA != sdk.PrivacyUnknown {
		t.Errorf("expected COPPA and CCPA unknown, got %s/%s", got.COPPA, got.CCPA)
	}
}
