package storage

import "context"

// NewOrderInput is the normalized shape produced by the Order Extraction
// pipeline before persistence, common to both extraction types.
type NewOrderInput struct {
	CustomerName    string
	CustomerPhone   string
	DeliveryAddress string
	Items           []OrderItem
	TotalAmount     float64
	RawAIResponse   string
}

// ChatOrderInput extends NewOrderInput with the chat-log-specific fields.
type ChatOrderInput struct {
	NewOrderInput
	Confidence  ConfidenceLevel
	RawMessages []RawMessage
}

// OrderUpdate carries the strict allow-list of fields
// UpdateChatOrderDetails may change; zero-value pointers mean "leave
// unchanged". Any field not on this list is rejected by the HTTP
// validation layer before storage ever sees it.
type OrderUpdate struct {
	CustomerName    *string
	CustomerPhone   *string
	DeliveryAddress *string
	Items           []OrderItem
}

// ListOptions bounds a newest-first listing.
type ListOptions struct {
	Limit  int
	Offset int
}

// Store is the sole channel through which business data is read or
// written. Every method is tenant-scoped by organizationId.
type Store interface {
	GetOrganization(ctx context.Context, orgID string) (*Organization, error)
	GetBusinessProfile(ctx context.Context, orgID string) (*BusinessProfile, error)

	GetOrders(ctx context.Context, orgID string, opts ListOptions) ([]OrderWithCustomer, error)
	GetChatOrders(ctx context.Context, orgID string, opts ListOptions) ([]OrderWithCustomer, error)
	GetOrder(ctx context.Context, orgID, orderID string) (*OrderWithCustomer, error)
	AddOrder(ctx context.Context, orgID string, in NewOrderInput) (*Order, error)
	AddChatOrder(ctx context.Context, orgID string, in ChatOrderInput) (*Order, error)
	UpdateOrderStatus(ctx context.Context, orgID, orderID string, status OrderStatus) (*Order, error)
	UpdateChatOrderDetails(ctx context.Context, orgID, orderID string, update OrderUpdate) (*Order, error)
	DeleteOrder(ctx context.Context, orgID, orderID string) error

	// AttachInvoice attaches an already-computed invoice to an order,
	// re-asserting organizationId on the update. Used for idempotent
	// retries that already hold an allocated sequence.
	AttachInvoice(ctx context.Context, orgID, orderID string, sequence int, invoice *Invoice) (*Order, error)

	// GenerateAndAttachInvoice allocates the next sequence number for orgID
	// and attaches the computed invoice to orderID in one transaction. If
	// orderID already carries an invoice, it is returned unchanged and no
	// new sequence number is allocated (idempotent per order). isInterstate
	// is passed straight through to compute.Compute.
	GenerateAndAttachInvoice(ctx context.Context, orgID, orderID string, isInterstate bool, compute InvoiceComputer) (*Order, error)

	// GetChatOrdersCount counts chat-log orders, optionally filtered by
	// status (empty string means unfiltered).
	GetChatOrdersCount(ctx context.Context, orgID string, statusFilter OrderStatus) (int64, error)
	GetTotalRevenue(ctx context.Context, orgID string) (float64, error)

	LookupAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error)
	TouchAPIKey(ctx context.Context, keyID string) error

	GetUserBySubject(ctx context.Context, subject string) (*User, error)
	CreateUser(ctx context.Context, user User) (*User, error)

	GetRole(ctx context.Context, orgID, roleName string) (*Role, error)
}

// InvoiceComputer computes an Invoice for an order's items given the
// organization's business profile, without performing any I/O. Implemented
// by the invoice package; kept as an interface here so storage never
// imports invoice (it is invoice that would import storage's types).
type InvoiceComputer interface {
	Compute(profile *BusinessProfile, sequence int, order *Order, customerName string, isInterstate bool) (*Invoice, error)
}
