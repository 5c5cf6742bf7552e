package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist
// (or has been soft-deleted).
var ErrNotFound = errors.New("not found")

// Owner is a legacy account that predates per-app tenancy. Kept only for the
// backward-compat resolution path.
type Owner struct {
	ID        string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// Tenant is an isolated configuration unit ("app") owning its own FAQs,
// workflows, and settings.
type Tenant struct {
	ID              string
	OwnerID         string
	DisplayName     string
	Industry        string
	BoundNumber     *string
	UsesBoundNumber bool
	Active          bool
	DeletedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type FAQEntry struct {
	ID        string
	TenantID  string
	Question  string
	Answer    string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkflowAttachment links a service plan to a workflow at a given position.
// Stored as JSONB on the service plan row.
type WorkflowAttachment struct {
	WorkflowID string `json:"workflowId"`
	Order      int    `json:"order"`
}

type ServicePlan struct {
	ID                string
	TenantID          string
	Question          string
	Answer            string
	AttachedWorkflows []WorkflowAttachment
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// WorkflowNode is one entry in the flat, group-keyed workflow list. A root
// node's GroupID equals its own ID; a child's GroupID points at its root.
type WorkflowNode struct {
	ID           string
	TenantID     string
	Title        string
	Prompt       string
	QuestionKind int
	IsRoot       bool
	GroupID      *string
	SortOrder    int
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type QuestionKind struct {
	ID       int
	TenantID string
	Label    string
	Active   bool
}

// LeadTypeOverride is a tenant-customized lead type, stored as JSONB on the
// integration row. Active uses a pointer because absent means active.
type LeadTypeOverride struct {
	ID                   string            `json:"id"`
	Text                 string            `json:"text"`
	Value                string            `json:"value"`
	RelevantServicePlans []string          `json:"relevantServicePlans,omitempty"`
	Synonyms             []string          `json:"synonyms,omitempty"`
	Labels               map[string]string `json:"labels,omitempty"`
	Active               *bool             `json:"active,omitempty"`
	Order                int               `json:"order"`
}

// Integration holds the per-tenant assistant settings. Rows with a nil
// TenantID and a set OwnerID are legacy owner-level records kept only for the
// migration fallback.
type Integration struct {
	ID                  string
	TenantID            *string
	OwnerID             *string
	AssistantName       string
	CompanyName         string
	Greeting            string
	ValidateEmail       bool
	ValidatePhoneNumber bool
	GoogleReviewEnabled bool
	GoogleReviewURL     string
	LeadTypes           []LeadTypeOverride
	CreatedAt           time.Time
	UpdatedAt           time.Time
}
