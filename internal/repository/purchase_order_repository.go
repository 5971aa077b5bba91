package repository

import (
	"context"

	"github.com/pesio-ai/be-ap-reconciler/internal/database"
	"github.com/pesio-ai/be-ap-reconciler/internal/errors"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
)

// PurchaseOrderRepository reads the purchase order catalog
type PurchaseOrderRepository struct {
	db *database.DB
}

// NewPurchaseOrderRepository creates a new PurchaseOrderRepository.
func NewPurchaseOrderRepository(db *database.DB) *PurchaseOrderRepository {
	return &PurchaseOrderRepository{db: db}
}

// LoadCatalog reads every open purchase order with its lines, ordered so that
// catalog order (and therefore tie-breaking) is stable across loads.
func (r *PurchaseOrderRepository) LoadCatalog(ctx context.Context) (*reconcile.Catalog, error) {
	query := `
		SELECT po.po_number, l.description, l.quantity, l.unit_price, l.total
		FROM purchase_orders po
		LEFT JOIN purchase_order_lines l ON l.po_number = po.po_number
		WHERE po.status = 'open'
		ORDER BY po.created_at ASC, po.po_number ASC, l.line_number ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to load purchase orders")
	}
	defer rows.Close()

	catalog := &reconcile.Catalog{PurchaseOrders: []reconcile.PurchaseOrder{}}
	index := make(map[string]int)

	for rows.Next() {
		var poNumber string
		var description *string
		var quantity, unitPrice, total *float64
		if err := rows.Scan(&poNumber, &description, &quantity, &unitPrice, &total); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan purchase order line")
		}

		i, ok := index[poNumber]
		if !ok {
			catalog.PurchaseOrders = append(catalog.PurchaseOrders, reconcile.PurchaseOrder{
				PONumber:  poNumber,
				LineItems: []reconcile.LineItem{},
			})
			i = len(catalog.PurchaseOrders) - 1
			index[poNumber] = i
		}

		// PO without lines
		if description == nil {
			continue
		}

		catalog.PurchaseOrders[i].LineItems = append(catalog.PurchaseOrders[i].LineItems, reconcile.LineItem{
			Description: *description,
			Quantity:    deref(quantity),
			UnitPrice:   deref(unitPrice),
			Total:       deref(total),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate purchase orders")
	}

	return catalog, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
