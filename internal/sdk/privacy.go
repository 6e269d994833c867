package sdk

// PrivacyStatus is the network's tri-state privacy flag
type PrivacyStatus int

const (
	PrivacyUnknown PrivacyStatus = iota
	PrivacyAuthorized
	PrivacyUnauthorized
)

func (s PrivacyStatus) String() string {
	switch s {
	case PrivacyAuthorized:
		return "authorized"
	case PrivacyUnauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Privacy holds the flags applied globally before every load
type Privacy struct {
	GDPR  PrivacyStatus
	COPPA PrivacyStatus
	CCPA  PrivacyStatus
}
