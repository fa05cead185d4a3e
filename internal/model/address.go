// internal/model/address.go
package model

import (
	"errors"
	"strings"
)

// LogSuffix is appended to "<service>-<session>" to form a log resource name.
const LogSuffix = ".log"

// ErrInvalidAddress is returned for identifiers that cannot name a log resource.
var ErrInvalidAddress = errors.New("invalid log address")

// Address
// ------------------------------------------------------------
// Identifies exactly one log resource: (service name, session id).
//
// Resource name: <service>-<session>.log
//
// Both parts may contain hyphens in the service name; the session is
// recovered as the substring after the LAST hyphen of the base name.
type Address struct {
	Service string
	Session string
}

// ObjectName returns the storage name of the resource.
func (a Address) ObjectName() string {
	return a.Service + "-" + a.Session + LogSuffix
}

// Validate rejects empty parts and anything that could escape the log
// directory or bucket prefix once joined into a path or key.
func (a Address) Validate() error {
	for _, part := range []string{a.Service, a.Session} {
		if strings.TrimSpace(part) == "" {
			return ErrInvalidAddress
		}
		if strings.ContainsAny(part, `/\`) || strings.Contains(part, "..") {
			return ErrInvalidAddress
		}
	}
	return nil
}

// ParseObjectName
//
// Reverse of ObjectName. The suffix match is case-insensitive.
// Returns ok=false for names that are not log resources:
//   - missing ".log" suffix
//   - no hyphen, or hyphen at the first position (empty service)
//   - hyphen at the last position (empty session)
func ParseObjectName(name string) (Address, bool) {
	if len(name) <= len(LogSuffix) || !strings.EqualFold(name[len(name)-len(LogSuffix):], LogSuffix) {
		return Address{}, false
	}
	base := name[:len(name)-len(LogSuffix)]

	idx := strings.LastIndexByte(base, '-')
	if idx <= 0 || idx == len(base)-1 {
		return Address{}, false
	}
	return Address{Service: base[:idx], Session: base[idx+1:]}, true
}
