package model

import "time"

// Class is the closed set of agent/playbook classes.
type Class string

const (
	ClassIngest     Class = "ingest"
	ClassQuery      Class = "query"
	ClassManagement Class = "management"
)

// IsValid reports whether c is one of the known classes.
func (c Class) IsValid() bool {
	switch c {
	case ClassIngest, ClassQuery, ClassManagement:
		return true
	}
	return false
}

// Interrogative is the semantic axis of a query agent. Bullets are
// ordered by CanonicalInterrogativeOrder.
type Interrogative string

const (
	What      Interrogative = "What"
	Where     Interrogative = "Where"
	When      Interrogative = "When"
	Who       Interrogative = "Who"
	Why       Interrogative = "Why"
	How       Interrogative = "How"
	Which     Interrogative = "Which"
	HowMany   Interrogative = "HowMany"
	HowMuch   Interrogative = "HowMuch"
	FromWhere Interrogative = "FromWhere"
	WhatKind  Interrogative = "WhatKind"
)

// CanonicalInterrogativeOrder is the closed, ordered set of interrogatives
// (spec.md §4.7). Index in this slice is the sort key for query bullets.
var CanonicalInterrogativeOrder = []Interrogative{
	What, Where, When, Who, Why, How, Which, HowMany, HowMuch, FromWhere, WhatKind,
}

// IsValid reports whether i is a member of CanonicalInterrogativeOrder.
func (i Interrogative) IsValid() bool {
	for _, c := range CanonicalInterrogativeOrder {
		if c == i {
			return true
		}
	}
	return false
}

// Rank returns i's position in CanonicalInterrogativeOrder, or len(order)
// if i is not a recognized interrogative (sorts unknowns last).
func (i Interrogative) Rank() int {
	for idx, c := range CanonicalInterrogativeOrder {
		if c == i {
			return idx
		}
	}
	return len(CanonicalInterrogativeOrder)
}

// FieldType is the declared type of a single output_schema key.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeBool    FieldType = "bool"
	FieldTypeObject  FieldType = "object"
	FieldTypeArray   FieldType = "array"
)

// MaxOutputKeys is the hard cap on an agent's declared output schema and
// on any single status=ok invocation's output (spec.md §3, §8).
const MaxOutputKeys = 5

// ToolName is a member of the Tool Broker's closed tool set (spec.md §4.4).
type ToolName string

const (
	ToolLLM            ToolName = "llm"
	ToolEntityNLP      ToolName = "entity_nlp"
	ToolGeocode        ToolName = "geocode"
	ToolWebSearch      ToolName = "web_search"
	ToolDataRetrieval  ToolName = "data.retrieval"
	ToolDataAggregation ToolName = "data.aggregation"
	ToolDataSpatial    ToolName = "data.spatial"
	ToolDataAnalytics  ToolName = "data.analytics"
	ToolVectorSearch   ToolName = "vector_search"
	ToolCustomHTTP     ToolName = "custom_http"
)

// AllTools is the closed tool set (spec.md §4.4).
var AllTools = []ToolName{
	ToolLLM, ToolEntityNLP, ToolGeocode, ToolWebSearch,
	ToolDataRetrieval, ToolDataAggregation, ToolDataSpatial, ToolDataAnalytics,
	ToolVectorSearch, ToolCustomHTTP,
}

// IsValid reports whether t is a member of the closed tool set.
func (t ToolName) IsValid() bool {
	for _, v := range AllTools {
		if v == t {
			return true
		}
	}
	return false
}

// AgentDefinition is spec.md §3's AgentDefinition entity.
type AgentDefinition struct {
	TenantID          string
	AgentID           string
	Class             Class
	SystemPrompt      string
	AllowedTools      []ToolName
	OutputSchema      map[string]FieldType
	RequiredKeys      []string // subset of OutputSchema keys that must be present on status=ok
	DependencyParent  string   // agent_id, empty if none
	Interrogative     Interrogative // only meaningful when Class == ClassQuery
	IsBuiltin         bool
	Version           int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Playbook is spec.md §3's Playbook entity.
type Playbook struct {
	TenantID   string
	PlaybookID string
	DomainID   string
	Class      Class
	AgentIDs   []string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Edge is a single parent->child dependency edge.
type Edge struct {
	From string
	To   string
}

// DependencyGraph is spec.md §3's DependencyGraph entity.
type DependencyGraph struct {
	TenantID   string
	GraphID    string
	PlaybookID string
	Edges      []Edge
}

// DomainTemplate is spec.md §3's DomainTemplate entity — immutable source
// material for instantiate_template.
type DomainTemplate struct {
	TemplateID string
	Name       string
	// Playbooks and Agents use symbolic (template-local) agent IDs that
	// InstantiateTemplate rewrites to fresh tenant-scoped IDs.
	Agents    []AgentDefinition
	Playbooks []Playbook
	Graphs    []DependencyGraph
}
