package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// AlertType identifies the evaluation strategy of an alert rule.
type AlertType string

const (
	AlertOverdueInvoice  AlertType = "overdue_invoice"
	AlertLowBalance      AlertType = "low_balance"
	AlertPendingApproval AlertType = "pending_approval"
)

// AlertTypes returns every alert type the system knows about, in evaluation order.
func AlertTypes() []AlertType {
	return []AlertType{AlertLowBalance, AlertOverdueInvoice, AlertPendingApproval}
}

// AlertRule is a stored, type-tagged condition/action pair.
type AlertRule struct {
	ID            int64          `json:"id" db:"id"`
	Name          string         `json:"name" db:"name"`
	AlertType     AlertType      `json:"alert_type" db:"alert_type"`
	Condition     datatypes.JSON `json:"condition" db:"condition_json"`
	Action        datatypes.JSON `json:"action" db:"action_json"`
	IsActive      bool           `json:"is_active" db:"is_active"`
	LastTriggered *time.Time     `json:"last_triggered,omitempty" db:"last_triggered"`
	TriggerCount  int64          `json:"trigger_count" db:"trigger_count"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// RuleAction is the action payload shared by all alert types.
type RuleAction struct {
	CreateNotification *bool `json:"create_notification,omitempty"`
}

// Notify reports whether the rule should emit notifications. Absent means yes.
func (a RuleAction) Notify() bool {
	return a.CreateNotification == nil || *a.CreateNotification
}

// ParseAction decodes a rule's action payload. An empty payload yields the defaults.
func ParseAction(raw []byte) (RuleAction, error) {
	var a RuleAction
	if len(raw) == 0 || string(raw) == "null" {
		return a, nil
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return a, &ValidationError{Field: "action", Message: err.Error()}
	}
	return a, nil
}

// NotificationType classifies notifications for the UI.
type NotificationType string

const (
	TypeAlert    NotificationType = "alert"
	TypeReminder NotificationType = "reminder"
	TypeInfo     NotificationType = "info"
	TypeSystem   NotificationType = "system"
)

// Priority orders notifications in listings.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Rank returns the sort weight of a priority; unknown values rank lowest.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Notification is a message surfaced to one user, or to everyone when UserID is nil.
type Notification struct {
	ID          int64            `json:"id" db:"id"`
	UserID      *int64           `json:"user_id" db:"user_id"`
	Type        NotificationType `json:"type" db:"type"`
	Category    string           `json:"category" db:"category"`
	Title       string           `json:"title" db:"title"`
	Message     string           `json:"message" db:"message"`
	ActionURL   string           `json:"action_url,omitempty" db:"action_url"`
	ActionLabel string           `json:"action_label,omitempty" db:"action_label"`
	Priority    Priority         `json:"priority" db:"priority"`
	RelatedType string           `json:"related_type,omitempty" db:"related_type"`
	RelatedID   *int64           `json:"related_id,omitempty" db:"related_id"`
	Metadata    datatypes.JSON   `json:"metadata,omitempty" db:"metadata_json"`
	IsRead      bool             `json:"is_read" db:"is_read"`
	ReadAt      *time.Time       `json:"read_at,omitempty" db:"read_at"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty" db:"expires_at"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	DedupKey    *string          `json:"-" db:"dedup_key"`
}

// Broadcast reports whether the notification is visible to all users.
func (n *Notification) Broadcast() bool {
	return n.UserID == nil
}

// Expired reports whether the notification is inactive at the given time.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// InvoiceStatusUnpaid is the status of invoices still awaiting payment.
const InvoiceStatusUnpaid = "unpaid"

// Invoice is the read-only projection of a business invoice.
type Invoice struct {
	ID            int64     `json:"id" db:"id"`
	InvoiceNumber string    `json:"invoice_number" db:"invoice_number"`
	Status        string    `json:"status" db:"status"`
	DueDate       time.Time `json:"due_date" db:"due_date"`
	Total         float64   `json:"total" db:"total"`
	Currency      string    `json:"currency" db:"currency"`
}

// Petty cash transaction types and approval states.
const (
	PettyCashCredit = "credit"
	PettyCashDebit  = "debit"

	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// PettyCash is the read-only projection of a petty cash transaction.
type PettyCash struct {
	ID              int64     `json:"id" db:"id"`
	TransactionType string    `json:"transaction_type" db:"transaction_type"`
	Amount          float64   `json:"amount" db:"amount"`
	Currency        string    `json:"currency" db:"currency"`
	ApprovalStatus  string    `json:"approval_status" db:"approval_status"`
	TransactionDate time.Time `json:"transaction_date" db:"transaction_date"`
	Description     string    `json:"description" db:"description"`
}

// NotificationFilter selects notifications visible to one user.
type NotificationFilter struct {
	UserID     int64
	UnreadOnly bool
	Limit      int
	Now        time.Time
}
