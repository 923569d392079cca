package policy

import (
	"strings"

	"github.com/org/feedbackvault/pkg/models"
)

// Allow returns a document granting invoke on resource.
func Allow(resource string) models.PolicyDocument {
	return document(models.EffectAllow, resource)
}

// Deny returns a document refusing invoke on resource.
func Deny(resource string) models.PolicyDocument {
	return document(models.EffectDeny, resource)
}

func document(effect, resource string) models.PolicyDocument {
	return models.PolicyDocument{
		Version: models.PolicyVersion,
		Statement: []models.Statement{{
			Action:   models.ActionInvoke,
			Effect:   effect,
			Resource: resource,
		}},
	}
}

// IsAllowed evaluates doc IAM-style: an explicit Deny wins, otherwise any matching
// Allow grants, otherwise the call is denied.
func IsAllowed(doc models.PolicyDocument, action, resource string) bool {
	allowed := false
	for _, st := range doc.Statement {
		if !matchPattern(st.Action, action) || !matchPattern(st.Resource, resource) {
			continue
		}
		switch st.Effect {
		case models.EffectDeny:
			return false
		case models.EffectAllow:
			allowed = true
		}
	}
	return allowed
}

// matchPattern matches s against an IAM-style pattern:
//   - "*" matches any run of characters, including "/"
//   - "?" matches exactly one character
func matchPattern(pattern, s string) bool {
	p, i := 0, 0
	star, mark := -1, 0
	for i < len(s) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == s[i]):
			p++
			i++
		case p < len(pattern) && pattern[p] == '*':
			star, mark = p, i
			p++
		case star >= 0:
			p = star + 1
			mark++
			i = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// MethodOf extracts the HTTP method from a resource identifier. Two shapes are understood:
//   - "GET/feedback" (HTTP transport)
//   - "arn:aws:execute-api:region:account:api/stage/GET/feedback" (API Gateway method ARN)
func MethodOf(resource string) string {
	if strings.HasPrefix(resource, "arn:") {
		parts := strings.Split(resource, "/")
		if len(parts) < 3 {
			return ""
		}
		return parts[2]
	}
	method, _, _ := strings.Cut(resource, "/")
	return method
}

// Resource builds the HTTP transport resource identifier for a request.
func Resource(method, path string) string {
	return method + "/" + strings.TrimPrefix(path, "/")
}
