package models

import "time"

// Policy effects and the single action the feedback API understands.
const (
	EffectAllow = "Allow"
	EffectDeny  = "Deny"

	ActionInvoke = "execute-api:Invoke"

	PolicyVersion = "2012-10-17"
)

// Statement is one IAM-style rule inside a PolicyDocument.
type Statement struct {
	Action   string `json:"Action"`
	Effect   string `json:"Effect"`
	Resource string `json:"Resource"`
}

// PolicyDocument is the allow/deny decision an authorizer returns.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// AuditEntry records a single request event. It never carries feedback content.
type AuditEntry struct {
	RequestID      string
	Timestamp      time.Time
	PrincipalID    string
	Operation      string
	Path           string
	FeedbackID     string
	Status         string
	ResponseCode   int
	ResponseTimeMs int64
	ClientIP       string
	UserAgent      string
}
