package domain

import "encoding/json"

// RuleCondition is one persisted node of a rule tree.
// Type selects the rule implementation; Value holds its JSON encoded parameters.
type RuleCondition struct {
	ID       string          `json:"id" jsonapi:"primary,rule_condition"`
	Type     string          `json:"type" jsonapi:"attr,conditionType"`
	RuleID   string          `json:"ruleId" jsonapi:"attr,ruleId"`
	ParentID *string         `json:"parentId,omitempty" jsonapi:"attr,parentId,omitempty"`
	Value    json.RawMessage `json:"value,omitempty" jsonapi:"attr,value,omitempty"`
	Position int             `json:"position" jsonapi:"attr,position"`
}

// EntityName implements Resource.
func (c *RuleCondition) EntityName() string { return "rule_condition" }

// GetID implements Resource.
func (c *RuleCondition) GetID() string { return c.ID }
