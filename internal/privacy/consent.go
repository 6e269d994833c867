// Package privacy translates mediation consent signals into the network's
// privacy flags.
package privacy

import (
	"github.com/thenexusengine/tne_adtalos/internal/mediation"
	"github.com/thenexusengine/tne_adtalos/internal/sdk"
)

// Translate converts the three consent flags into network privacy flags.
// Each flag is translated independently; an unknown input stays unknown.
//
//	hasUserConsent  -> GDPR: true=authorized,   false=unauthorized
//	isAgeRestricted -> COPPA: true=unauthorized, false=authorized
//	isDoNotSell     -> CCPA: true=unauthorized,  false=authorized
func Translate(hasUserConsent, isAgeRestricted, isDoNotSell *bool) sdk.Privacy {
	return sdk.Privacy{
		GDPR:  grantedWhen(hasUserConsent, true),
		COPPA: grantedWhen(isAgeRestricted, false),
		CCPA:  grantedWhen(isDoNotSell, false),
	}
}

// FromConsent translates a request's consent block
func FromConsent(c mediation.Consent) sdk.Privacy {
	return Translate(c.HasUserConsent, c.IsAgeRestricted, c.IsDoNotSell)
}

// grantedWhen returns authorized when flag equals want, unauthorized when it
// differs and unknown when the flag is absent
func grantedWhen(flag *bool, want bool) sdk.PrivacyStatus {
	if flag == nil {
		return sdk.PrivacyUnknown
	}
	if *flag == want {
		return sdk.PrivacyAuthorized
	}
	return sdk.PrivacyUnauthorized
}
