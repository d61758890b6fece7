package dashboard

import (
	"context"
	"log/slog"

	"github.com/shomere/ICR-Projects/internal/models"
	"github.com/shomere/ICR-Projects/internal/supabase"
)

type ClientStats struct {
	TotalRequests    int `json:"totalRequests"`
	PendingRequests  int `json:"pendingRequests"`
	ApprovedRequests int `json:"approvedRequests"`
	TotalOrders      int `json:"totalOrders"`
}

type ClientView struct {
	Stats    ClientStats             `json:"stats"`
	Requests []models.ProductRequest `json:"requests"`
	Orders   []models.Order          `json:"orders"`
	Products []models.Product        `json:"products"`

	// Rows returned for another client and discarded.
	ForeignRows  int          `json:"foreignRows"`
	RejectedRows int          `json:"rejectedRows"`
	Errors       []FetchError `json:"errors"`
}

// ClientDash loads and mutates one client's view. Every row it returns
// belongs to the requested client, whatever the server sends back.
type ClientDash struct {
	client *supabase.Client
	logger *slog.Logger
}

func NewClient(client *supabase.Client, logger *slog.Logger) *ClientDash {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClientDash{client: client, logger: logger}
}

func (d *ClientDash) Load(ctx context.Context, clientID string) (*ClientView, error) {
	if err := checkID(clientID); err != nil {
		return nil, err
	}

	v := &ClientView{}
	b := newBatch(d.logger)

	list(ctx, b, "requests",
		d.client.From("product_requests").Eq("client_id", clientID).Order("created_at", false), &v.Requests)
	list(ctx, b, "orders",
		d.client.From("orders").Select("*, order_items(*, products(name, image_url))").Eq("client_id", clientID).Order("created_at", false), &v.Orders)
	list(ctx, b, "products",
		d.client.From("products").Eq("is_active", true).Order("created_at", false), &v.Products)

	if err := b.wait(ctx); err != nil {
		return nil, err
	}

	// Keep only this client's rows.
	requests := make([]models.ProductRequest, 0, len(v.Requests))
	for _, r := range v.Requests {
		if r.ClientID != clientID {
			v.ForeignRows++
			continue
		}
		requests = append(requests, r)
	}
	orders := make([]models.Order, 0, len(v.Orders))
	for _, o := range v.Orders {
		if o.ClientID != clientID {
			v.ForeignRows++
			continue
		}
		orders = append(orders, o)
	}
	if v.ForeignRows > 0 {
		d.logger.Error("server returned rows of another client; check row-level policies",
			"client_id", clientID, "dropped", v.ForeignRows)
	}
	v.Requests, v.Orders = requests, orders

	v.Stats.TotalRequests = len(v.Requests)
	v.Stats.TotalOrders = len(v.Orders)
	for _, r := range v.Requests {
		switch r.Status {
		case models.RequestPending:
			v.Stats.PendingRequests++
		case models.RequestApproved:
			v.Stats.ApprovedRequests++
		}
	}

	v.RejectedRows = b.rejected
	v.Errors = b.errs
	return v, nil
}

// SubmitRequest files a new pending product request for clientID and
// reloads the view.
func (d *ClientDash) SubmitRequest(ctx context.Context, clientID string, in models.RequestInput) (*ClientView, error) {
	if err := checkID(clientID); err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if err := d.client.From("product_requests").Insert(in.Row(clientID)).Execute(ctx, nil); err != nil {
		d.logger.Warn("submit request failed", "client_id", clientID, "kind", supabase.KindOf(err), "error", err)
		return nil, err
	}
	return d.Load(ctx, clientID)
}
