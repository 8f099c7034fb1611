package enums

import "fmt"

// PartnerStatus maps to the partner_status enum in Postgres.
type PartnerStatus string

const (
	PartnerStatusAvailable    PartnerStatus = "available"
	PartnerStatusNotAvailable PartnerStatus = "not_available"
	PartnerStatusWaitlist     PartnerStatus = "waitlist"
)

var validPartnerStatuses = []PartnerStatus{
	PartnerStatusAvailable,
	PartnerStatusNotAvailable,
	PartnerStatusWaitlist,
}

// String implements fmt.Stringer.
func (p PartnerStatus) String() string {
	return string(p)
}

// IsValid reports whether the value matches the canonical partner_status enum.
func (p PartnerStatus) IsValid() bool {
	for _, candidate := range validPartnerStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePartnerStatus converts raw input into PartnerStatus.
func ParsePartnerStatus(value string) (PartnerStatus, error) {
	for _, candidate := range validPartnerStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid partner status %q", value)
}

// AuthMethod maps to the auth_method enum in Postgres. It drives how access
// is delivered once a request is approved.
type AuthMethod string

const (
	AuthMethodEmail  AuthMethod = "email"
	AuthMethodCodes  AuthMethod = "codes"
	AuthMethodProxy  AuthMethod = "proxy"
	AuthMethodBundle AuthMethod = "bundle"
)

var validAuthMethods = []AuthMethod{
	AuthMethodEmail,
	AuthMethodCodes,
	AuthMethodProxy,
	AuthMethodBundle,
}

// String implements fmt.Stringer.
func (a AuthMethod) String() string {
	return string(a)
}

// IsValid reports whether the value matches the canonical auth_method enum.
func (a AuthMethod) IsValid() bool {
	for _, candidate := range validAuthMethods {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAuthMethod converts raw input into AuthMethod.
func ParseAuthMethod(value string) (AuthMethod, error) {
	for _, candidate := range validAuthMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid auth method %q", value)
}

// IsProxied reports whether access is delivered through the proxy server.
func (a AuthMethod) IsProxied() bool {
	return a == AuthMethodProxy || a == AuthMethodBundle
}

// FinalizesInstantly reports whether approval completes delivery with no
// manual dispatch step.
func (a AuthMethod) FinalizesInstantly() bool {
	return a == AuthMethodProxy || a == AuthMethodBundle
}
