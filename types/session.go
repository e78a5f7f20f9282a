package types

// Session is the cached answer to "who is signed in".
// Identity nil means no session; it is only meaningful once Status is Ready.
type Session struct {
	Identity *UserIdentity
	Status   Status
	Err      error
	Version  uint64
}

// Authenticated reports whether the session grants access to protected routes.
// Loading, Idle and Failed never do.
func (s Session) Authenticated() bool {
	return s.Status == Ready && s.Identity != nil
}

// Resolved reports whether the identity question has an answer (Ready or Failed).
func (s Session) Resolved() bool {
	return s.Status == Ready || s.Status == Failed
}
