package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chatinvoice/apperror"
)

// Postgres is the gorm-backed Store implementation. Every query is scoped
// by organizationId; soft-deleted orders are excluded from every read path
// except getOrderRaw, the by-id reload that returns an order after an update.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres wraps an already-opened *gorm.DB.
func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	var org Organization
	if err := p.db.WithContext(ctx).First(&org, "id = ?", orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound(orgID)
		}
		return nil, apperror.Wrap(apperror.Internal, "load organization", err)
	}
	return &org, nil
}

func (p *Postgres) GetBusinessProfile(ctx context.Context, orgID string) (*BusinessProfile, error) {
	var profile BusinessProfile
	if err := p.db.WithContext(ctx).First(&profile, "organization_id = ?", orgID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound(orgID)
		}
		return nil, apperror.Wrap(apperror.Internal, "load business profile", err)
	}
	return &profile, nil
}

func (p *Postgres) GetOrders(ctx context.Context, orgID string, opts ListOptions) ([]OrderWithCustomer, error) {
	return p.listOrders(ctx, orgID, "", opts)
}

func (p *Postgres) GetChatOrders(ctx context.Context, orgID string, opts ListOptions) ([]OrderWithCustomer, error) {
	return p.listOrders(ctx, orgID, ExtractionChatLog, opts)
}

func (p *Postgres) listOrders(ctx context.Context, orgID string, extractionType ExtractionType, opts ListOptions) ([]OrderWithCustomer, error) {
	var rows []OrderWithCustomer
	q := p.db.WithContext(ctx).
		Table("orders").
		Select("orders.*, customers.name as customer_name, customers.phone as customer_phone").
		Joins("left join customers on customers.id = orders.customer_id").
		Where("orders.organization_id = ? AND orders.deleted_at IS NULL", orgID).
		Order("orders.created_at DESC")
	if extractionType != "" {
		q = q.Where("orders.extraction_type = ?", extractionType)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperror.Wrap(apperror.Internal, "load orders", err)
	}
	return rows, nil
}

func (p *Postgres) GetOrder(ctx context.Context, orgID, orderID string) (*OrderWithCustomer, error) {
	var row OrderWithCustomer
	err := p.db.WithContext(ctx).
		Table("orders").
		Select("orders.*, customers.name as customer_name, customers.phone as customer_phone").
		Joins("left join customers on customers.id = orders.customer_id").
		Where("orders.organization_id = ? AND orders.id = ? AND orders.deleted_at IS NULL", orgID, orderID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound(orderID)
		}
		return nil, apperror.Wrap(apperror.Internal, "load order", err)
	}
	return &row, nil
}

func (p *Postgres) AddOrder(ctx context.Context, orgID string, in NewOrderInput) (*Order, error) {
	var order *Order
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := createCustomer(tx, orgID, in.CustomerName, in.CustomerPhone, in.DeliveryAddress)
		if err != nil {
			return err
		}
		order = &Order{
			ID:              uuid.NewString(),
			OrganizationID:  orgID,
			CustomerID:      customer.ID,
			ExtractionType:  ExtractionSingleMessage,
			TotalAmount:     in.TotalAmount,
			DeliveryAddress: in.DeliveryAddress,
			Status:          StatusPending,
			RawAIResponse:   in.RawAIResponse,
			CreatedAt:       time.Now().UTC(),
			UpdatedAt:       time.Now().UTC(),
		}
		if err := tx.Create(order).Error; err != nil {
			return apperror.Wrap(apperror.Internal, "create order", err)
		}
		return saveOrderItems(tx, orgID, order.ID, in.Items)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (p *Postgres) AddChatOrder(ctx context.Context, orgID string, in ChatOrderInput) (*Order, error) {
	var order *Order
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := findCustomerByName(tx, orgID, in.CustomerName, in.CustomerPhone, in.DeliveryAddress)
		if err != nil {
			return err
		}
		rawMessages, err := json.Marshal(in.RawMessages)
		if err != nil {
			return apperror.Wrap(apperror.Internal, "marshal raw messages", err)
		}
		confidence := in.Confidence
		order = &Order{
			ID:              uuid.NewString(),
			OrganizationID:  orgID,
			CustomerID:      customer.ID,
			ExtractionType:  ExtractionChatLog,
			TotalAmount:     in.TotalAmount,
			DeliveryAddress: in.DeliveryAddress,
			ConfidenceLabel: &confidence,
			Status:          StatusPending,
			RawAIResponse:   in.RawAIResponse,
			RawMessages:     string(rawMessages),
			CreatedAt:       time.Now().UTC(),
			UpdatedAt:       time.Now().UTC(),
		}
		if err := tx.Create(order).Error; err != nil {
			return apperror.Wrap(apperror.Internal, "create chat order", err)
		}
		return saveOrderItems(tx, orgID, order.ID, in.Items)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// createCustomer always inserts a new Customer row. Single-message orders
// have no reliable identity to dedupe on beyond a free-text name, so every
// single-message extraction gets its own customer record.
func createCustomer(tx *gorm.DB, orgID, name, phone, address string) (*Customer, error) {
	customer := Customer{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Name:           name,
		Phone:          phone,
		Address:        address,
		CreatedAt:      time.Now().UTC(),
	}
	if err := tx.Create(&customer).Error; err != nil {
		return nil, apperror.Wrap(apperror.Internal, "create customer", err)
	}
	return &customer, nil
}

// findCustomerByName looks up an existing customer by (organizationId, name)
// for chat-log orders, where the same conversational customer is expected to
// recur, and falls back to creating one on a miss.
func findCustomerByName(tx *gorm.DB, orgID, name, phone, address string) (*Customer, error) {
	var customer Customer
	err := tx.Where("organization_id = ? AND name = ?", orgID, name).Take(&customer).Error
	switch {
	case err == nil:
		return &customer, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return createCustomer(tx, orgID, name, phone, address)
	default:
		return nil, apperror.Wrap(apperror.Internal, "lookup customer", err)
	}
}

func saveOrderItems(tx *gorm.DB, orgID, orderID string, items []OrderItem) error {
	for i := range items {
		items[i].ID = uuid.NewString()
		items[i].OrderID = orderID
		items[i].OrganizationID = orgID
	}
	if len(items) == 0 {
		return nil
	}
	if err := tx.Create(&items).Error; err != nil {
		return apperror.Wrap(apperror.Internal, "create order items", err)
	}
	return nil
}

func (p *Postgres) UpdateOrderStatus(ctx context.Context, orgID, orderID string, status OrderStatus) (*Order, error) {
	if !ValidOrderStatus(status) {
		return nil, apperror.New(apperror.Validation, fmt.Sprintf("invalid order status %q", status))
	}
	res := p.db.WithContext(ctx).Model(&Order{}).
		Where("organization_id = ? AND id = ? AND deleted_at IS NULL", orgID, orderID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, apperror.Wrap(apperror.Internal, "update order status", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrOrderNotFound(orderID)
	}
	return p.getOrderRaw(ctx, orgID, orderID)
}

func (p *Postgres) UpdateChatOrderDetails(ctx context.Context, orgID, orderID string, update OrderUpdate) (*Order, error) {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Order
		if err := tx.Where("organization_id = ? AND id = ? AND deleted_at IS NULL", orgID, orderID).
			Take(&existing).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound(orderID)
			}
			return apperror.Wrap(apperror.Internal, "load order for update", err)
		}

		if update.CustomerName != nil || update.CustomerPhone != nil {
			changes := map[string]any{}
			if update.CustomerName != nil {
				changes["name"] = *update.CustomerName
			}
			if update.CustomerPhone != nil {
				changes["phone"] = *update.CustomerPhone
			}
			if err := tx.Model(&Customer{}).
				Where("id = ? AND organization_id = ?", existing.CustomerID, orgID).
				Updates(changes).Error; err != nil {
				return apperror.Wrap(apperror.Internal, "update customer", err)
			}
		}

		orderChanges := map[string]any{"updated_at": time.Now().UTC()}
		if update.DeliveryAddress != nil {
			orderChanges["delivery_address"] = *update.DeliveryAddress
		}
		if update.Items != nil {
			if err := tx.Where("order_id = ? AND organization_id = ?", orderID, orgID).
				Delete(&OrderItem{}).Error; err != nil {
				return apperror.Wrap(apperror.Internal, "clear order items", err)
			}
			if err := saveOrderItems(tx, orgID, orderID, update.Items); err != nil {
				return err
			}
			var total float64
			for _, item := range update.Items {
				if item.TotalPrice != nil {
					total += *item.TotalPrice
				}
			}
			orderChanges["total_amount"] = total
		}
		if err := tx.Model(&Order{}).
			Where("organization_id = ? AND id = ?", orgID, orderID).
			Updates(orderChanges).Error; err != nil {
			return apperror.Wrap(apperror.Internal, "update order", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p.getOrderRaw(ctx, orgID, orderID)
}

func (p *Postgres) getOrderRaw(ctx context.Context, orgID, orderID string) (*Order, error) {
	var order Order
	if err := p.db.WithContext(ctx).
		Where("organization_id = ? AND id = ?", orgID, orderID).
		Take(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound(orderID)
		}
		return nil, apperror.Wrap(apperror.Internal, "reload order", err)
	}
	return &order, nil
}

func (p *Postgres) DeleteOrder(ctx context.Context, orgID, orderID string) error {
	res := p.db.WithContext(ctx).Model(&Order{}).
		Where("organization_id = ? AND id = ? AND deleted_at IS NULL", orgID, orderID).
		Update("deleted_at", time.Now().UTC())
	if res.Error != nil {
		return apperror.Wrap(apperror.Internal, "soft delete order", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrOrderNotFound(orderID)
	}
	return nil
}

// AttachInvoice attaches an already-computed invoice to orderID,
// re-asserting organizationId on the update so a forged order id under a
// different tenant cannot be targeted.
func (p *Postgres) AttachInvoice(ctx context.Context, orgID, orderID string, sequence int, invoice *Invoice) (*Order, error) {
	res := p.db.WithContext(ctx).Model(&Order{}).
		Where("organization_id = ? AND id = ? AND deleted_at IS NULL", orgID, orderID).
		Updates(map[string]any{
			"invoice":          invoice,
			"invoice_sequence": sequence,
			"status":           StatusConfirmed,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, apperror.Wrap(apperror.Internal, "attach invoice", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrOrderNotFound(orderID)
	}
	return p.getOrderRaw(ctx, orgID, orderID)
}

// GenerateAndAttachInvoice allocates the organization's next invoice
// sequence number and attaches a computed invoice to orderID, all within a
// single transaction guarded by a row lock on the organization's business
// profile (see lockBusinessProfile) so concurrent requests for the same
// tenant serialize on sequence allocation while different tenants proceed
// independently.
func (p *Postgres) GenerateAndAttachInvoice(ctx context.Context, orgID, orderID string, isInterstate bool, compute InvoiceComputer) (*Order, error) {
	var result *Order
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order Order
		if err := tx.Where("organization_id = ? AND id = ? AND deleted_at IS NULL", orgID, orderID).
			Take(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound(orderID)
			}
			return apperror.Wrap(apperror.Internal, "load order", err)
		}
		if order.Invoice != nil {
			result = &order
			return nil
		}

		var customer Customer
		if err := tx.Where("id = ? AND organization_id = ?", order.CustomerID, orgID).
			Take(&customer).Error; err != nil {
			return apperror.Wrap(apperror.Internal, "load customer", err)
		}

		if err := tx.Where("order_id = ? AND organization_id = ?", orderID, orgID).
			Find(&order.Items).Error; err != nil {
			return apperror.Wrap(apperror.Internal, "load order items", err)
		}

		profile, err := p.lockBusinessProfile(tx, orgID)
		if err != nil {
			return err
		}

		var maxSeq int
		if err := tx.Raw(`SELECT COALESCE(MAX(invoice_sequence), 0) FROM orders WHERE organization_id = ?`, orgID).
			Scan(&maxSeq).Error; err != nil {
			return apperror.Wrap(apperror.Internal, "read invoice sequence", err)
		}
		sequence := maxSeq + 1

		invoice, err := compute.Compute(profile, sequence, &order, customer.Name, isInterstate)
		if err != nil {
			return apperror.Wrap(apperror.Internal, "compute invoice", err)
		}

		if err := tx.Model(&Order{}).
			Where("organization_id = ? AND id = ?", orgID, orderID).
			Updates(map[string]any{
				"invoice":          invoice,
				"invoice_sequence": sequence,
				"status":           StatusConfirmed,
				"updated_at":       time.Now().UTC(),
			}).Error; err != nil {
			return apperror.Wrap(apperror.Internal, "attach invoice", err)
		}

		order.Invoice = invoice
		order.InvoiceSequence = &sequence
		order.Status = StatusConfirmed
		result = &order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// lockBusinessProfile takes a row lock on the organization's business
// profile so concurrent invoice generations for the same org serialize on
// sequence allocation, keeping invoice numbers gapless and dense. SQLite (the
// dialect the test suite runs against) has no FOR UPDATE syntax and instead
// serializes on its single-writer transaction lock, so the clause is only
// applied against dialects that support it.
func (p *Postgres) lockBusinessProfile(tx *gorm.DB, orgID string) (*BusinessProfile, error) {
	var profile BusinessProfile
	q := tx.Where("organization_id = ?", orgID)
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	err := q.Take(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrganizationNotFound(orgID)
		}
		return nil, apperror.Wrap(apperror.Internal, "lock business profile", err)
	}
	return &profile, nil
}

func (p *Postgres) GetChatOrdersCount(ctx context.Context, orgID string, statusFilter OrderStatus) (int64, error) {
	var count int64
	q := p.db.WithContext(ctx).Model(&Order{}).
		Where("organization_id = ? AND extraction_type = ? AND deleted_at IS NULL", orgID, ExtractionChatLog)
	if statusFilter != "" {
		q = q.Where("status = ?", statusFilter)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, apperror.Wrap(apperror.Internal, "count chat orders", err)
	}
	return count, nil
}

func (p *Postgres) GetTotalRevenue(ctx context.Context, orgID string) (float64, error) {
	var total float64
	err := p.db.WithContext(ctx).Model(&Order{}).
		Where("organization_id = ? AND deleted_at IS NULL", orgID).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, apperror.Wrap(apperror.Internal, "sum revenue", err)
	}
	return total, nil
}

func (p *Postgres) LookupAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	var key APIKey
	err := p.db.WithContext(ctx).
		Where("key_hash = ? AND is_active = true", keyHash).
		Take(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, apperror.Wrap(apperror.Internal, "lookup api key", err)
	}
	return &key, nil
}

func (p *Postgres) TouchAPIKey(ctx context.Context, keyID string) error {
	now := time.Now().UTC()
	return p.db.WithContext(ctx).Model(&APIKey{}).
		Where("id = ?", keyID).
		Update("last_used_at", now).Error
}

func (p *Postgres) GetUserBySubject(ctx context.Context, subject string) (*User, error) {
	var user User
	err := p.db.WithContext(ctx).First(&user, "id = ?", subject).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperror.Wrap(apperror.Internal, "lookup user", err)
	}
	return &user, nil
}

func (p *Postgres) CreateUser(ctx context.Context, user User) (*User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if err := p.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, apperror.Wrap(apperror.Internal, "provision user", err)
	}
	return &user, nil
}

func (p *Postgres) GetRole(ctx context.Context, orgID, roleName string) (*Role, error) {
	var role Role
	err := p.db.WithContext(ctx).
		Where("organization_id = ? AND name = ?", orgID, roleName).
		Take(&role).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoleNotFound(orgID, roleName)
		}
		return nil, apperror.Wrap(apperror.Internal, "lookup role", err)
	}
	return &role, nil
}
