// Package policy evaluates facade authorization with OPA.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Input is the document the policy decides on.
type Input struct {
	Action        string `json:"action"`
	Authenticated bool   `json:"authenticated"`
	Admin         bool   `json:"admin"`
	UID           string `json:"uid"`
	// UserID is the user the request acts for, when it names one.
	UserID string `json:"user_id"`
}

// Decision is the policy verdict.
type Decision struct {
	Allow  bool
	Reason string
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.chatbot.authz.decision"),
		rego.Module("authz.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Authorize evaluates the policy. An empty result set denies.
func (e *Engine) Authorize(ctx context.Context, input Input) (Decision, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Allow: false, Reason: "no decision"}, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("unexpected policy result %T", results[0].Expressions[0].Value)
	}
	allow, _ := obj["allow"].(bool)
	reason, _ := obj["reason"].(string)
	return Decision{Allow: allow, Reason: reason}, nil
}

// DefaultPolicy restricts agent management to admins and keeps users on their own data.
const DefaultPolicy = `
package chatbot.authz

import rego.v1

admin_actions := {"CREATE_ASSISTANT", "UPDATE_ASSISTANT", "DELETE_ASSISTANT", "GET_AGENTS"}

default decision := {"allow": false, "reason": "authentication required"}

decision := {"allow": false, "reason": "admin role required"} if {
	input.authenticated
	missing_role
}

decision := {"allow": false, "reason": "request is for another user"} if {
	input.authenticated
	not missing_role
	not owner_ok
}

decision := {"allow": true, "reason": ""} if {
	input.authenticated
	not missing_role
	owner_ok
}

admin_action if input.action in admin_actions

missing_role if {
	admin_action
	not input.admin
}

owner_ok if input.user_id == ""

owner_ok if input.user_id == input.uid

# Admins may read and write end-user conversations.
owner_ok if {
	input.admin
	not admin_action
}
`
