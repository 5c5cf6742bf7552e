// Package engine implements tenant context resolution and aggregation: it
// maps an inbound key to one tenant, assembles the tenant's conversation
// model from independently-edited collections, and serves it through a
// short-TTL cache with explicit invalidation.
package engine

// AssembledContext is the derived conversation model served to the chat
// pipeline. It is never persisted; its only identity is the cache entry.
type AssembledContext struct {
	Tenant       TenantSummary      `json:"tenant"`
	Integration  IntegrationSummary `json:"integration"`
	LeadTypes    []LeadType         `json:"leadTypes"`
	FAQ          []FAQItem          `json:"faq"`
	ServicePlans []ServicePlanItem  `json:"servicePlans"`
	Workflows    []RootWorkflow     `json:"workflows"`
}

type TenantSummary struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Industry    string `json:"industry"`
}

// IntegrationSummary carries the greeting template verbatim; the
// {assistantName}/{companyName} placeholders are resolved by the caller.
type IntegrationSummary struct {
	AssistantName       string `json:"assistantName"`
	CompanyName         string `json:"companyName"`
	Greeting            string `json:"greeting"`
	ValidateEmail       bool   `json:"validateEmail"`
	ValidatePhoneNumber bool   `json:"validatePhoneNumber"`
	GoogleReviewEnabled bool   `json:"googleReviewEnabled"`
	GoogleReviewURL     string `json:"googleReviewUrl"`
}

type FAQItem struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type ServicePlanItem struct {
	Question          string           `json:"question"`
	Answer            string           `json:"answer"`
	AttachedWorkflows []PlanAttachment `json:"attachedWorkflows"`
}

// PlanAttachment echoes the stored attachment plus a resolved summary when
// the referenced workflow exists.
type PlanAttachment struct {
	WorkflowID string           `json:"workflowId"`
	Order      int              `json:"order"`
	Workflow   *WorkflowSummary `json:"workflow,omitempty"`
}

type WorkflowSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	QuestionKind int    `json:"questionKind"`
}

// RootWorkflow is a top-level conversation entry point with its ordered,
// active child questions. TreatmentPlanOrder/SourceLabel are stamped by the
// plan merger when a service plan attaches the workflow.
type RootWorkflow struct {
	ID                       string          `json:"id"`
	Title                    string          `json:"title"`
	Prompt                   string          `json:"prompt"`
	QuestionKind             int             `json:"questionKind"`
	Order                    int             `json:"order"`
	TreatmentPlanOrder       *int            `json:"treatmentPlanOrder,omitempty"`
	TreatmentPlanSourceLabel string          `json:"treatmentPlanSourceLabel,omitempty"`
	Questions                []ChildWorkflow `json:"questions"`
}

type ChildWorkflow struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Prompt       string `json:"prompt"`
	QuestionKind int    `json:"questionKind"`
	Order        int    `json:"order"`
}
