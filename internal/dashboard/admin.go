package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shomere/ICR-Projects/internal/models"
	"github.com/shomere/ICR-Projects/internal/supabase"
)

// AdminStats are the headline counts of the admin view.
type AdminStats struct {
	TotalUsers      int `json:"totalUsers"`
	TotalProducts   int `json:"totalProducts"`
	TotalOrders     int `json:"totalOrders"`
	PendingRequests int `json:"pendingRequests"`
	UnreadMessages  int `json:"unreadMessages"`
	LowStockItems   int `json:"lowStockItems"`
}

type AdminView struct {
	Stats     AdminStats              `json:"stats"`
	Requests  []models.ProductRequest `json:"requests"`
	Orders    []models.Order          `json:"orders"`
	Messages  []models.ContactMessage `json:"messages"`
	Products  []models.Product        `json:"products"`
	Inventory []models.Inventory      `json:"inventory"`
	LowStock  []models.Inventory      `json:"lowStock"`

	// Orders whose total does not match their loaded items. Reported only.
	UnreconciledOrders []string `json:"unreconciledOrders"`

	RejectedRows int          `json:"rejectedRows"`
	Errors       []FetchError `json:"errors"`
}

// Admin loads and mutates the global view. The client it is given should
// carry the admin's access token so row-level policies see an admin.
type Admin struct {
	client *supabase.Client
	logger *slog.Logger
	now    func() time.Time
}

func NewAdmin(client *supabase.Client, logger *slog.Logger) *Admin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Admin{client: client, logger: logger, now: time.Now}
}

// Load fetches every collection and count in one parallel batch.
func (a *Admin) Load(ctx context.Context) (*AdminView, error) {
	v := &AdminView{}
	b := newBatch(a.logger)

	// 1. --- Counts ---
	count(ctx, b, "count profiles", a.client.From("profiles"), &v.Stats.TotalUsers)
	count(ctx, b, "count products", a.client.From("products"), &v.Stats.TotalProducts)
	count(ctx, b, "count orders", a.client.From("orders"), &v.Stats.TotalOrders)
	count(ctx, b, "count pending requests",
		a.client.From("product_requests").Eq("status", models.RequestPending), &v.Stats.PendingRequests)
	count(ctx, b, "count unread messages",
		a.client.From("contact_messages").Eq("is_read", false), &v.Stats.UnreadMessages)

	// 2. --- Collections ---
	list(ctx, b, "requests",
		a.client.From("product_requests").Select("*, profiles(full_name, email)").Order("created_at", false), &v.Requests)
	list(ctx, b, "orders",
		a.client.From("orders").Select("*, profiles(full_name, email)").Order("created_at", false), &v.Orders)
	list(ctx, b, "messages",
		a.client.From("contact_messages").Order("created_at", false), &v.Messages)
	list(ctx, b, "products",
		a.client.From("products").Order("created_at", false), &v.Products)
	list(ctx, b, "inventory",
		a.client.From("inventory").Select("*, products(name, category)").Order("last_updated", false), &v.Inventory)

	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	// 3. --- Derived ---
	v.LowStock = []models.Inventory{}
	for _, item := range v.Inventory {
		if item.IsLowStock() {
			v.LowStock = append(v.LowStock, item)
		}
	}
	v.Stats.LowStockItems = len(v.LowStock)

	v.UnreconciledOrders = []string{}
	for _, o := range v.Orders {
		if !o.Reconciled() {
			v.UnreconciledOrders = append(v.UnreconciledOrders, o.ID)
		}
	}

	v.RejectedRows = b.rejected
	v.Errors = b.errs
	return v, nil
}

// UpdateRequestStatus moves a product request to a new status, optionally
// with notes and a quote. Only those fields and updated_at are written.
func (a *Admin) UpdateRequestStatus(ctx context.Context, id string, upd models.RequestUpdate) (*AdminView, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	patch := map[string]any{
		"status":     upd.Status,
		"updated_at": a.now().UTC(),
	}
	if upd.AdminNotes != nil {
		patch["admin_notes"] = *upd.AdminNotes
	}
	if upd.QuoteAmount != nil {
		patch["quote_amount"] = *upd.QuoteAmount
	}
	return a.update(ctx, "product_requests", id, patch)
}

func (a *Admin) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) (*AdminView, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if !models.ValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: unknown order status %q", models.ErrInvalid, status)
	}
	return a.update(ctx, "orders", id, map[string]any{
		"status":     status,
		"updated_at": a.now().UTC(),
	})
}

func (a *Admin) MarkMessageRead(ctx context.Context, id string) (*AdminView, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return a.update(ctx, "contact_messages", id, map[string]any{"is_read": true})
}

func (a *Admin) UpdateInventory(ctx context.Context, id string, upd models.InventoryUpdate) (*AdminView, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	patch := map[string]any{"last_updated": a.now().UTC()}
	if upd.QuantityAvailable != nil {
		patch["quantity_available"] = *upd.QuantityAvailable
	}
	if upd.MinimumStock != nil {
		patch["minimum_stock"] = *upd.MinimumStock
	}
	return a.update(ctx, "inventory", id, patch)
}

// CreateProduct adds an active catalog item.
func (a *Admin) CreateProduct(ctx context.Context, in models.ProductInput) (*AdminView, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	var created []models.Product
	if err := a.client.From("products").Insert(in.Row()).Execute(ctx, &created); err != nil {
		a.logger.Warn("create product failed", "kind", supabase.KindOf(err), "error", err)
		return nil, err
	}
	a.logger.Info("product created", "name", in.Name, "rows", len(created))
	return a.Load(ctx)
}

// update patches one row by id and reloads the view. A patch that matches
// no visible row is an error, not a silent no-op.
func (a *Admin) update(ctx context.Context, table, id string, patch map[string]any) (*AdminView, error) {
	var rows []map[string]any
	err := a.client.From(table).Update(patch).Eq("id", id).Execute(ctx, &rows)
	if err != nil {
		a.logger.Warn("admin update failed", "table", table, "id", id, "kind", supabase.KindOf(err), "error", err)
		return nil, err
	}
	if len(rows) == 0 {
		return nil, supabase.NoRows("update " + table)
	}
	return a.Load(ctx)
}
