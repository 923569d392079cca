package models

// Identity is what an authorizer attaches to an admitted call.
type Identity struct {
	PrincipalID string
	Context     map[string]string
	Policy      PolicyDocument
}

// Attr returns a context attribute or "" when absent.
func (i *Identity) Attr(key string) string {
	if i == nil || i.Context == nil {
		return ""
	}
	return i.Context[key]
}
