// Package storage is the only channel through which business data is read
// or written. Every method takes organizationId as its first parameter and
// every read/update/soft-delete predicate includes organizationId = $org
// AND deletedAt IS NULL, enforcing tenant isolation at the data layer
// rather than trusting callers.
package storage

import "time"

// Tier is an organization's billing/rate-limit tier.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Organization is the tenant root. Created externally; the core only reads
// and references it, never deletes it.
type Organization struct {
	ID          string `gorm:"primaryKey"`
	Name        string
	GSTNumber   string
	Tier        Tier
	CreatedAt   time.Time
}

func (Organization) TableName() string { return "organizations" }

// BusinessProfile is 1:1 with Organization and feeds the Invoice Engine's
// issuer identity and tax rate.
type BusinessProfile struct {
	OrganizationID string `gorm:"primaryKey"`
	BusinessName   string
	GSTNumber      string
	TaxRatePercent float64
	Currency       string
}

func (BusinessProfile) TableName() string { return "business_profiles" }

// User mirrors the external identity provider's subject id. OrganizationID
// is null until the user joins an org.
type User struct {
	ID             string `gorm:"primaryKey"` // external IdP subject
	Email          string
	Name           string
	OrganizationID *string
	Role           string
	CreatedAt      time.Time
}

func (User) TableName() string { return "users" }

// Permission is a member of the closed enumeration of role capabilities.
type Permission string

const (
	PermViewOrders    Permission = "view_orders"
	PermEditOrders    Permission = "edit_orders"
	PermDeleteOrders  Permission = "delete_orders"
	PermViewPII       Permission = "view_pii"
	PermManageUsers   Permission = "manage_users"
	PermManageBilling Permission = "manage_billing"
	PermManageAPIKeys Permission = "manage_api_keys"
	PermViewAnalytics Permission = "view_analytics"
)

// Role is a named, per-org set of permissions.
type Role struct {
	OrganizationID string `gorm:"primaryKey"`
	Name           string `gorm:"primaryKey"`
	Permissions    []Permission `gorm:"serializer:json"`
}

func (Role) TableName() string { return "roles" }

// APIKey is stored only as a SHA-256 hash plus a display-safe mask; the raw
// key value never touches the database.
type APIKey struct {
	ID             string `gorm:"primaryKey"`
	OrganizationID string
	KeyHash        string
	Mask           string
	IsActive       bool
	LastUsedAt     *time.Time
	CreatedAt      time.Time
}

func (APIKey) TableName() string { return "api_keys" }

// Customer is scoped per org; phone is unique only within an org.
type Customer struct {
	ID             string `gorm:"primaryKey"`
	OrganizationID string
	Name           string
	Phone          string
	Address        string
	CreatedAt      time.Time
}

func (Customer) TableName() string { return "customers" }

// Product is an optional per-org catalog entry.
type Product struct {
	ID             string `gorm:"primaryKey"`
	OrganizationID string
	Name           string
	Unit           string
	PricePerUnit   *float64
	CreatedAt      time.Time
}

func (Product) TableName() string { return "products" }

// ExtractionType discriminates how an order's raw inputs should be
// interpreted; modeled as a closed string enum (tagged variant), never an
// untyped bag.
type ExtractionType string

const (
	ExtractionSingleMessage ExtractionType = "single_message"
	ExtractionChatLog       ExtractionType = "chat_log"
)

// OrderStatus is the order status machine's closed state set.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusFulfilled OrderStatus = "fulfilled"
	StatusCancelled OrderStatus = "cancelled"
)

// ValidOrderStatus reports whether s is one of the four enumerated states.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFulfilled, StatusCancelled:
		return true
	default:
		return false
	}
}

// ConfidenceLevel is the enumerated confidence reported for chat-log
// extractions ("high" | "medium" | "low").
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// RawMessage is one verbatim chat-log input line, retained for audit even
// when downstream extraction fails.
type RawMessage struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// InvoiceLineItem is an immutable snapshot line inside an attached Invoice.
type InvoiceLineItem struct {
	ProductName string  `json:"productName"`
	Quantity    float64 `json:"quantity"`
	PricePerUnit float64 `json:"pricePerUnit"`
	Amount      float64 `json:"amount"`
}

// Invoice is an embedded, immutable-once-attached value inside an Order.
type Invoice struct {
	Number         string            `json:"number"`
	Date           string            `json:"date"` // DD/MM/YYYY
	CustomerName   string            `json:"customerName"`
	Items          []InvoiceLineItem `json:"items"`
	Subtotal       float64           `json:"subtotal"`
	CGST           float64           `json:"cgst"`
	SGST           float64           `json:"sgst"`
	IGST           *float64          `json:"igst,omitempty"`
	Total          float64           `json:"total"`
	BusinessName   string            `json:"businessName"`
	GSTNumber      string            `json:"gstNumber"`
}

// OrderItem is a normalized line item persisted alongside an Order.
type OrderItem struct {
	ID           string `gorm:"primaryKey"`
	OrderID      string
	OrganizationID string
	ProductName  string
	Quantity     float64
	Unit         string
	PricePerUnit *float64
	TotalPrice   *float64
}

func (OrderItem) TableName() string { return "order_items" }

// Order is the central entity produced by the extraction pipeline.
type Order struct {
	ID              string `gorm:"primaryKey"`
	OrganizationID  string
	CustomerID      string
	ExtractionType  ExtractionType
	Items           []OrderItem `gorm:"-"` // saved by AddOrder/AddChatOrder; loaded only by GenerateAndAttachInvoice, other reads leave it empty
	TotalAmount     float64
	DeliveryAddress string
	DeliveryDate    *time.Time
	ConfidenceLabel *ConfidenceLevel // chat_log orders
	ConfidenceScore *float64         // single_message orders
	Status          OrderStatus
	RawAIResponse   string `gorm:"type:jsonb"` // audit copy of the LLM payload
	RawMessages     string `gorm:"type:jsonb"` // audit copy of verbatim inputs
	Invoice         *Invoice `gorm:"serializer:json"`
	InvoiceSequence *int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	DeletedAt       *time.Time
}

func (Order) TableName() string { return "orders" }

// OrderWithCustomer is the denormalized read shape returned to callers; it
// joins the customer name onto the order the way the HTTP surface expects.
type OrderWithCustomer struct {
	Order
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
}
