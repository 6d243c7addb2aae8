// Package jpc defines the JSON Procedure Call data model shared by the guest
// runtime: classified errors, call results and the request/response envelopes.
package jpc

// Kind classifies an Error. A Kind is itself an error so it can be used as
// the target of errors.Is.
type Kind string

const (
	KindOther          Kind = "unclassified error"
	KindNotImplemented Kind = "not implemented"
	KindInvalid        Kind = "invalid"
	KindPermission     Kind = "permission denied"
	KindIO             Kind = "I/O error"
	KindExist          Kind = "item already exists"
	KindNotExist       Kind = "item does not exist"
	KindIsDir          Kind = "item is a directory"
	KindNotDir         Kind = "item is not a directory"
	KindFinalized      Kind = "item is already finalized"
	KindNotFinalized   Kind = "item is not finalized"
	KindBadHTTPParams  Kind = "Invalid Http params specified"
)

func (k Kind) Error() string { return string(k) }

// Kinds lists every known kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindOther,
		KindNotImplemented,
		KindInvalid,
		KindPermission,
		KindIO,
		KindExist,
		KindNotExist,
		KindIsDir,
		KindNotDir,
		KindFinalized,
		KindNotFinalized,
		KindBadHTTPParams,
	}
}

// ParseKind maps a serialized kind back to a Kind. Unknown strings map to
// KindOther.
func ParseKind(s string) Kind {
	for _, k := range Kinds() {
		if string(k) == s {
			return k
		}
	}
	return KindOther
}
