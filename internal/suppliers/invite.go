package suppliers

import (
	"crypto/subtle"
	"strings"
)

// DefaultInviteCode is accepted when no code is configured.
const DefaultInviteCode = "SUPPLIER-INVITE"

// InviteGate guards entry into the invited registration flow.
type InviteGate struct {
	code string
}

func NewInviteGate(code string) InviteGate {
	code = strings.TrimSpace(code)
	if code == "" {
		code = DefaultInviteCode
	}
	return InviteGate{code: code}
}

// IsValidInviteCode compares against the accepted value in constant time.
func (g InviteGate) IsValidInviteCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(code), []byte(g.code)) == 1
}
