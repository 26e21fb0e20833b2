package directory

import "errors"

// Protocol-facing error kinds. The LDAP front end maps these onto result
// codes; everything else surfaces as an operations error.
var (
	// ErrNoSuchObject: the target DN is not present in the snapshot, or a
	// bind targeted something that cannot authenticate (e.g. a container).
	ErrNoSuchObject = errors.New("no such object")

	// ErrInvalidCredentials: a bind carried the wrong secret, or the
	// upstream authentication check rejected the user.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInsufficientAccess: a bound identity other than the administrator
	// attempted to search.
	ErrInsufficientAccess = errors.New("insufficient access rights")
)
