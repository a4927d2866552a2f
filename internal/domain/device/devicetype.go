package device

import (
	"fmt"
	"strings"
)

// Type identifies the platform a provisioned account is intended for. Trial
// is the short-lived welcome configuration granted by the referral program.
type Type string

const (
	TypeIOS     Type = "ios"
	TypeAndroid Type = "android"
	TypeWindows Type = "windows"
	TypeMacOS   Type = "macos"
	TypeLinux   Type = "linux"
	TypeTrial   Type = "trial"
)

var allTypes = []Type{TypeIOS, TypeAndroid, TypeWindows, TypeMacOS, TypeLinux, TypeTrial}

// ParseType normalizes and validates a device type string.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range allTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown device type %q", s)
}

func (t Type) String() string {
	return string(t)
}

// IsTrial reports whether devices of this type are handled by the
// near-real-time trial expiration pass.
func (t Type) IsTrial() bool {
	return t == TypeTrial
}

// AccountPrefix returns the deterministic prefix used when synthesizing the
// remote account name.
func (t Type) AccountPrefix() string {
	return string(t)
}

// OwnsAccountName reports whether the account name carries one of our type
// prefixes. Remote accounts other systems created on a shared control plane
// never match and must be left alone.
func OwnsAccountName(name string) bool {
	for _, t := range allTypes {
		if strings.HasPrefix(name, t.AccountPrefix()) {
			return true
		}
	}
	return false
}
