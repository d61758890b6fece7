package dashboard

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shomere/ICR-Projects/internal/models"
	"github.com/shomere/ICR-Projects/internal/supabase"
	"github.com/shomere/ICR-Projects/internal/supabase/supabasetest"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fixture struct {
	srv    *supabasetest.Server
	client *supabase.Client
	admin  *Admin
	dash   *ClientDash
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := supabasetest.NewServer(t)
	c, err := supabase.New(supabase.Config{URL: srv.URL, AnonKey: supabasetest.AnonKey})
	require.NoError(t, err)

	a := NewAdmin(c, quiet)
	a.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{srv: srv, client: c, admin: a, dash: NewClient(c, quiet)}
}

func request(clientID, status string) supabasetest.Row {
	return supabasetest.Row{
		"id":               uuid.NewString(),
		"client_id":        clientID,
		"product_category": "ceramic_mugs",
		"product_name":     "Branded mugs",
		"description":      "200 mugs with logo",
		"quantity":         200,
		"budget_range":     "500-800 USD",
		"status":           status,
		"created_at":       "2025-01-10T08:00:00Z",
		"updated_at":       "2025-01-10T08:00:00Z",
	}
}

func order(clientID string, total float64, items ...supabasetest.Row) supabasetest.Row {
	id := uuid.NewString()
	row := supabasetest.Row{
		"id":               id,
		"client_id":        clientID,
		"order_number":     "ICR-" + id[:6],
		"total_amount":     total,
		"status":           "pending",
		"shipping_address": "KG 7 Ave, Kigali",
		"created_at":       "2025-01-11T08:00:00Z",
		"updated_at":       "2025-01-11T08:00:00Z",
	}
	if items != nil {
		for _, it := range items {
			it["order_id"] = id
		}
		row["order_items"] = items
	}
	return row
}

func item(qty int, unit float64) supabasetest.Row {
	return supabasetest.Row{
		"id":          uuid.NewString(),
		"product_id":  uuid.NewString(),
		"quantity":    qty,
		"unit_price":  unit,
		"total_price": float64(qty) * unit,
	}
}

func inventory(available, minimum int) supabasetest.Row {
	return supabasetest.Row{
		"id":                 uuid.NewString(),
		"product_id":         uuid.NewString(),
		"quantity_available": available,
		"minimum_stock":      minimum,
		"last_updated":       "2025-01-12T08:00:00Z",
	}
}

func TestAdminLoadEmpty(t *testing.T) {
	f := newFixture(t)

	v, err := f.admin.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, AdminStats{}, v.Stats)
	assert.NotNil(t, v.Requests)
	assert.NotNil(t, v.Orders)
	assert.NotNil(t, v.Messages)
	assert.NotNil(t, v.Products)
	assert.NotNil(t, v.Inventory)
	assert.NotNil(t, v.LowStock)
	assert.Empty(t, v.Errors)
}

func TestAdminLoadAggregates(t *testing.T) {
	f := newFixture(t)
	clientID := f.srv.AddUser("client@example.com", "secret123", "Client", "client")
	f.srv.AddUser("admin@example.com", "secret123", "Admin", "admin")

	f.srv.Seed("product_requests", request(clientID, "pending"), request(clientID, "pending"), request(clientID, "quoted"))
	f.srv.Seed("orders", order(clientID, 30, item(2, 10), item(1, 10)), order(clientID, 99, item(1, 10)))
	f.srv.Seed("contact_messages",
		supabasetest.Row{"id": uuid.NewString(), "name": "A", "email": "a@example.com", "message": "hi", "is_read": false},
		supabasetest.Row{"id": uuid.NewString(), "name": "B", "email": "b@example.com", "message": "hello", "is_read": true},
	)
	low := inventory(2, 10)
	f.srv.Seed("inventory", low, inventory(50, 10))

	v, err := f.admin.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, v.Stats.TotalUsers)
	assert.Equal(t, 2, v.Stats.TotalOrders)
	assert.Equal(t, 2, v.Stats.PendingRequests)
	assert.Equal(t, 1, v.Stats.UnreadMessages)
	assert.Equal(t, 1, v.Stats.LowStockItems)
	require.Len(t, v.LowStock, 1)
	assert.Equal(t, low["id"], v.LowStock[0].ID)
	assert.Len(t, v.Inventory, 2)
	assert.Len(t, v.Requests, 3)
	assert.Len(t, v.UnreconciledOrders, 1)
}

func TestAdminLoadIsLenient(t *testing.T) {
	f := newFixture(t)
	f.srv.Seed("inventory", inventory(1, 5))
	f.srv.DropTable("contact_messages")

	v, err := f.admin.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, v.Stats.LowStockItems, "other reads still populate")
	assert.Empty(t, v.Messages)
	assert.Equal(t, 0, v.Stats.UnreadMessages)
	require.Len(t, v.Errors, 2)
	for _, e := range v.Errors {
		assert.Equal(t, supabase.KindSchemaMissing, e.Kind)
	}
}

func TestAdminLoadRejectsInvalidRows(t *testing.T) {
	f := newFixture(t)
	bad := request(uuid.NewString(), "archived")
	f.srv.Seed("product_requests", bad, request(uuid.NewString(), "pending"))

	v, err := f.admin.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, v.Requests, 1)
	assert.Equal(t, 1, v.RejectedRows)
}

func TestUpdateRequestStatusOnlyTouchesStatus(t *testing.T) {
	f := newFixture(t)
	clientID := uuid.NewString()
	req := request(clientID, "pending")
	f.srv.Seed("product_requests", req)

	v, err := f.admin.UpdateRequestStatus(context.Background(), req["id"].(string), models.RequestUpdate{Status: models.RequestApproved})
	require.NoError(t, err)
	require.Len(t, v.Requests, 1)

	got := v.Requests[0]
	assert.Equal(t, models.RequestApproved, got.Status)
	assert.Equal(t, "Branded mugs", got.ProductName)
	assert.Equal(t, 200, got.Quantity)
	assert.Equal(t, "500-800 USD", *got.BudgetRange)
	assert.Nil(t, got.AdminNotes)
	assert.Nil(t, got.QuoteAmount)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC), got.UpdatedAt.UTC())
	assert.Equal(t, 0, v.Stats.PendingRequests)

	patches := f.srv.Patches()
	require.Len(t, patches, 1)
	assert.ElementsMatch(t, []string{"status", "updated_at"}, keys(patches[0].Body))
}

func TestUpdateRequestWithQuote(t *testing.T) {
	f := newFixture(t)
	req := request(uuid.NewString(), "reviewed")
	f.srv.Seed("product_requests", req)

	notes := "Glaze sample sent"
	quote := 640.0
	v, err := f.admin.UpdateRequestStatus(context.Background(), req["id"].(string), models.RequestUpdate{
		Status: models.RequestQuoted, AdminNotes: &notes, QuoteAmount: &quote,
	})
	require.NoError(t, err)
	assert.Equal(t, notes, *v.Requests[0].AdminNotes)
	assert.Equal(t, quote, *v.Requests[0].QuoteAmount)
}

func TestMutationFailuresAreSurfaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.admin.UpdateOrderStatus(ctx, "42", models.OrderShipped)
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, err, models.ErrInvalid)

	_, err = f.admin.UpdateOrderStatus(ctx, uuid.NewString(), "lost")
	assert.ErrorIs(t, err, models.ErrInvalid)

	_, err = f.admin.UpdateOrderStatus(ctx, uuid.NewString(), models.OrderShipped)
	assert.Equal(t, supabase.KindNotFound, supabase.KindOf(err), "no matching row")

	f.srv.DropTable("contact_messages")
	_, err = f.admin.MarkMessageRead(ctx, uuid.NewString())
	assert.Equal(t, supabase.KindSchemaMissing, supabase.KindOf(err))
}

func TestMarkMessageRead(t *testing.T) {
	f := newFixture(t)
	id := uuid.NewString()
	f.srv.Seed("contact_messages", supabasetest.Row{"id": id, "name": "A", "email": "a@example.com", "message": "hi", "is_read": false})

	v, err := f.admin.MarkMessageRead(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, v.Messages[0].IsRead)
	assert.Equal(t, 0, v.Stats.UnreadMessages)
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	o := order(uuid.NewString(), 10)
	f.srv.Seed("orders", o)

	v, err := f.admin.UpdateOrderStatus(context.Background(), o["id"].(string), models.OrderShipped)
	require.NoError(t, err)
	assert.Equal(t, models.OrderShipped, v.Orders[0].Status)
}

func TestUpdateInventoryClearsLowStock(t *testing.T) {
	f := newFixture(t)
	inv := inventory(2, 10)
	f.srv.Seed("inventory", inv)

	qty := 40
	v, err := f.admin.UpdateInventory(context.Background(), inv["id"].(string), models.InventoryUpdate{QuantityAvailable: &qty})
	require.NoError(t, err)
	assert.Equal(t, 0, v.Stats.LowStockItems)
	assert.Equal(t, 40, v.Inventory[0].QuantityAvailable)
	assert.Equal(t, 10, v.Inventory[0].MinimumStock)
}

func TestCreateProduct(t *testing.T) {
	f := newFixture(t)
	price := 12.5
	v, err := f.admin.CreateProduct(context.Background(), models.ProductInput{
		Name: "Espresso cup", Category: models.CategoryCeramicMugs, Price: &price,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v.Stats.TotalProducts)
	require.Len(t, v.Products, 1)
	assert.True(t, v.Products[0].IsActive)

	_, err = f.admin.CreateProduct(context.Background(), models.ProductInput{Name: "x", Category: "bricks"})
	assert.ErrorIs(t, err, models.ErrInvalid)
}

func TestClientLoadScopesRows(t *testing.T) {
	f := newFixture(t)
	me := uuid.NewString()
	other := uuid.NewString()

	f.srv.Seed("product_requests", request(me, "pending"), request(me, "approved"), request(other, "pending"))
	f.srv.Seed("orders", order(me, 20, item(2, 10)), order(other, 5))
	f.srv.Seed("products",
		supabasetest.Row{"id": uuid.NewString(), "name": "Vase", "category": "decorative", "is_active": true},
		supabasetest.Row{"id": uuid.NewString(), "name": "Old tile", "category": "floor_tiles", "is_active": false},
	)

	v, err := f.dash.Load(context.Background(), me)
	require.NoError(t, err)
	assert.Len(t, v.Requests, 2)
	assert.Len(t, v.Orders, 1)
	require.Len(t, v.Orders[0].OrderItems, 1)
	assert.Len(t, v.Products, 1)
	assert.Equal(t, ClientStats{TotalRequests: 2, PendingRequests: 1, ApprovedRequests: 1, TotalOrders: 1}, v.Stats)
	assert.Equal(t, 0, v.ForeignRows)
}

func TestClientLoadDropsForeignRowsWithoutPolicies(t *testing.T) {
	f := newFixture(t)
	me := uuid.NewString()
	other := uuid.NewString()
	f.srv.Seed("product_requests", request(me, "pending"), request(other, "pending"), request(other, "quoted"))
	f.srv.Seed("orders", order(other, 5))
	f.srv.IgnoreFilters = true

	v, err := f.dash.Load(context.Background(), me)
	require.NoError(t, err)
	for _, r := range v.Requests {
		assert.Equal(t, me, r.ClientID)
	}
	for _, o := range v.Orders {
		assert.Equal(t, me, o.ClientID)
	}
	assert.Len(t, v.Requests, 1)
	assert.Empty(t, v.Orders)
	assert.Equal(t, 3, v.ForeignRows)
}

func TestSubmitRequest(t *testing.T) {
	f := newFixture(t)
	me := uuid.NewString()

	v, err := f.dash.SubmitRequest(context.Background(), me, models.RequestInput{
		ProductCategory: models.CategorySanitaryWares,
		ProductName:     "Wash basins",
		Quantity:        12,
	})
	require.NoError(t, err)
	require.Len(t, v.Requests, 1)
	assert.Equal(t, models.RequestPending, v.Requests[0].Status)
	assert.Equal(t, me, v.Requests[0].ClientID)

	_, err = f.dash.SubmitRequest(context.Background(), me, models.RequestInput{ProductName: "no category", Quantity: 1})
	assert.ErrorIs(t, err, models.ErrInvalid)

	_, err = f.dash.Load(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
