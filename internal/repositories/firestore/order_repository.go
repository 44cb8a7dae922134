package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/shoestore/api/internal/domain"
	pfirestore "github.com/shoestore/api/internal/platform/firestore"
	"github.com/shoestore/api/internal/repositories"
)

const (
	orderCollection  = "orders"
	deleteBatchLimit = 500
)

var orderSortFields = map[string]string{
	repositories.SortCreatedAt:   "createdAt",
	repositories.SortUpdatedAt:   "updatedAt",
	repositories.SortTotalPrice:  "totalPrice",
	repositories.SortStatus:      "status",
	repositories.SortRequestedAt: "returnRequest.requestedAt",
}

// OrderRepository owns every order mutation. Multi-document changes run in a Firestore
// transaction with all reads issued before the first write.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
	products *pfirestore.BaseRepository[productDocument]
	carts    *pfirestore.BaseRepository[cartDocument]
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewBaseRepository[orderDocument](provider, orderCollection),
		products: pfirestore.NewBaseRepository[productDocument](provider, productCollection),
		carts:    pfirestore.NewBaseRepository[cartDocument](provider, cartCollection),
	}, nil
}

// abortError marks failures raised by caller callbacks so they surface unchanged after the
// transaction wrapper has classified everything else.
type abortError struct{ err error }

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

func (r *OrderRepository) PlaceOrder(ctx context.Context, req repositories.PlaceOrderRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	uid := strings.TrimSpace(req.UserID)
	if uid == "" {
		return domain.Order{}, errors.New("order place: user id is required")
	}
	if req.Build == nil {
		return domain.Order{}, errors.New("order place: builder is required")
	}

	var placed domain.Order
	err := r.provider.RunTransaction(ctx, pfirestore.StockTxPolicy, func(ctx context.Context, tx *firestore.Transaction) error {
		cartRef, err := r.carts.DocumentRef(ctx, uid)
		if err != nil {
			return err
		}
		cart, err := readCartAt(tx, cartRef, uid)
		if err != nil {
			return err
		}

		productRefs := make(map[string]*firestore.DocumentRef)
		refs := make([]*firestore.DocumentRef, 0, len(cart.Items))
		for _, item := range cart.Items {
			if _, ok := productRefs[item.ProductID]; ok {
				continue
			}
			ref, err := r.products.DocumentRef(ctx, item.ProductID)
			if err != nil {
				return err
			}
			productRefs[item.ProductID] = ref
			refs = append(refs, ref)
		}
		products, err := r.readProducts(tx, refs)
		if err != nil {
			return err
		}

		order, err := req.Build(cart, products)
		if err != nil {
			return &abortError{err: err}
		}

		updated := make(map[string]domain.Product, len(products))
		for _, item := range order.Items {
			product, ok := updated[item.ProductID]
			if !ok {
				if product, ok = products[item.ProductID]; !ok {
					return &abortError{err: repositories.NewStockError(repositories.StockErrorProductNotFound, item.ProductID, item.Size)}
				}
			}
			if err := repositories.TakeStock(&product, item.Size, item.Quantity); err != nil {
				return &abortError{err: err}
			}
			updated[item.ProductID] = product
		}

		orderRef, err := r.orders.DocumentRef(ctx, order.ID)
		if err != nil {
			return err
		}
		now := order.CreatedAt.UTC()
		for id, product := range updated {
			if err := tx.Update(productRefs[id], stockUpdates(product, now)); err != nil {
				return err
			}
		}
		if err := tx.Create(orderRef, newOrderDocument(order)); err != nil {
			return err
		}
		if err := tx.Set(cartRef, cartDocument{Items: []cartItemDocument{}, UpdatedAt: now}); err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		return domain.Order{}, unwrapAbort("orders.place", err)
	}
	return placed, nil
}

func (r *OrderRepository) Update(ctx context.Context, req repositories.UpdateOrderRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order update: order id is required")
	}
	if req.Mutate == nil {
		return domain.Order{}, errors.New("order update: mutator is required")
	}

	policy := pfirestore.DefaultTxPolicy
	if req.Restock {
		policy = pfirestore.StockTxPolicy
	}
	var result domain.Order
	err := r.provider.RunTransaction(ctx, policy, func(ctx context.Context, tx *firestore.Transaction) error {
		orderRef, err := r.orders.DocumentRef(ctx, orderID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(orderRef)
		if err != nil {
			return err
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode order %s: %w", orderID, err)
		}
		order := doc.toDomain(orderID)

		var (
			products    map[string]domain.Product
			productRefs = make(map[string]*firestore.DocumentRef)
		)
		if req.Restock {
			refs := make([]*firestore.DocumentRef, 0, len(order.Items))
			for _, item := range order.Items {
				if _, ok := productRefs[item.ProductID]; ok {
					continue
				}
				ref, err := r.products.DocumentRef(ctx, item.ProductID)
				if err != nil {
					return err
				}
				productRefs[item.ProductID] = ref
				refs = append(refs, ref)
			}
			if products, err = r.readProducts(tx, refs); err != nil {
				return err
			}
		}

		var (
			cartRef *firestore.DocumentRef
			cart    domain.Cart
		)
		if req.RestoreCart {
			if cartRef, cart, err = r.readCart(ctx, tx, order.UserID); err != nil {
				return err
			}
		}

		if err := req.Mutate(&order); err != nil {
			return &abortError{err: err}
		}
		now := req.Now.UTC()
		if now.IsZero() {
			now = time.Now().UTC()
		}
		order.UpdatedAt = now

		if req.Restock {
			for _, item := range order.Items {
				product, ok := products[item.ProductID]
				if !ok {
					continue
				}
				repositories.ReturnStock(&product, item.Size, item.Quantity)
				products[item.ProductID] = product
			}
			for id, product := range products {
				if err := tx.Update(productRefs[id], stockUpdates(product, now)); err != nil {
					return err
				}
			}
		}
		if req.RestoreCart {
			repositories.RestoreCartLines(&cart, order.Items)
			cart.UpdatedAt = now
			if err := tx.Set(cartRef, newCartDocument(cart)); err != nil {
				return err
			}
		}
		if err := tx.Set(orderRef, newOrderDocument(order)); err != nil {
			return err
		}
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, unwrapAbort("orders.update", err)
	}
	return result, nil
}

func (r *OrderRepository) readCart(ctx context.Context, tx *firestore.Transaction, userID string) (*firestore.DocumentRef, domain.Cart, error) {
	ref, err := r.carts.DocumentRef(ctx, userID)
	if err != nil {
		return nil, domain.Cart{}, err
	}
	cart, err := readCartAt(tx, ref, userID)
	return ref, cart, err
}

// readCartAt treats a missing cart document as an empty cart.
func readCartAt(tx *firestore.Transaction, ref *firestore.DocumentRef, userID string) (domain.Cart, error) {
	snap, err := tx.Get(ref)
	switch {
	case err == nil:
		var doc cartDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.Cart{}, fmt.Errorf("decode cart %s: %w", userID, err)
		}
		return doc.toDomain(userID), nil
	case status.Code(err) == codes.NotFound:
		return domain.Cart{UserID: userID}, nil
	default:
		return domain.Cart{}, err
	}
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order get: order id is required")
	}
	doc, err := r.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *OrderRepository) List(ctx context.Context, query repositories.OrderListQuery) (domain.Page[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.Page[domain.Order]{}, errors.New("order repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	filtered := client.Collection(orderCollection).Query
	if query.UserID != "" {
		filtered = filtered.Where("userId", "==", query.UserID)
	}
	if query.Status != "" {
		filtered = filtered.Where("status", "==", string(query.Status))
	}
	if query.ReturnRequested {
		filtered = filtered.Where("returnRequest.isRequested", "==", true)
	}
	if query.ReturnStatus != "" {
		filtered = filtered.Where("returnRequest.status", "==", string(query.ReturnStatus))
	}

	total, err := countQuery(ctx, filtered)
	if err != nil {
		return domain.Page[domain.Order]{}, pfirestore.WrapError("orders.count", err)
	}

	field, ok := orderSortFields[query.SortBy]
	if !ok {
		field = orderSortFields[repositories.SortCreatedAt]
	}
	direction := firestore.Desc
	if query.SortOrder == domain.SortAsc {
		direction = firestore.Asc
	}
	paged := filtered.OrderBy(field, direction)
	if query.Offset > 0 {
		paged = paged.Offset(query.Offset)
	}
	if query.Limit > 0 {
		paged = paged.Limit(query.Limit)
	}

	orders, err := r.collect(ctx, paged)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	return domain.Page[domain.Order]{Items: orders, TotalItems: total}, nil
}

func (r *OrderRepository) ListPaid(ctx context.Context, query repositories.PaidOrderQuery) ([]domain.Order, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("order repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	q := client.Collection(orderCollection).Where("isPaid", "==", true)
	if !query.From.IsZero() {
		q = q.Where("createdAt", ">=", query.From.UTC())
	}
	if !query.To.IsZero() {
		q = q.Where("createdAt", "<=", query.To.UTC())
	}
	orders, err := r.collect(ctx, q.OrderBy("createdAt", firestore.Asc))
	if err != nil {
		return nil, err
	}
	paid := orders[:0]
	for _, order := range orders {
		if order.Status != domain.OrderStatusCancelled {
			paid = append(paid, order)
		}
	}
	return paid, nil
}

// DeleteAll removes every order document through a BulkWriter in batches.
func (r *OrderRepository) DeleteAll(ctx context.Context) (int, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("order repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for {
		iter := client.Collection(orderCollection).Select().Limit(deleteBatchLimit).Documents(ctx)
		refs := make([]*firestore.DocumentRef, 0, deleteBatchLimit)
		for {
			snap, err := iter.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				iter.Stop()
				return deleted, pfirestore.WrapError("orders.deleteAll", err)
			}
			refs = append(refs, snap.Ref)
		}
		iter.Stop()
		if len(refs) == 0 {
			return deleted, nil
		}

		writer := client.BulkWriter(ctx)
		jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
		for _, ref := range refs {
			job, err := writer.Delete(ref)
			if err != nil {
				writer.End()
				return deleted, pfirestore.WrapError("orders.deleteAll", err)
			}
			jobs = append(jobs, job)
		}
		writer.End()
		for _, job := range jobs {
			if _, err := job.Results(); err != nil {
				return deleted, pfirestore.WrapError("orders.deleteAll", err)
			}
			deleted++
		}
		if len(refs) < deleteBatchLimit {
			return deleted, nil
		}
	}
}

func (r *OrderRepository) readProducts(tx *firestore.Transaction, refs []*firestore.DocumentRef) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(refs))
	if len(refs) == 0 {
		return products, nil
	}
	snaps, err := tx.GetAll(refs)
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		if snap == nil || !snap.Exists() {
			continue
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		products[snap.Ref.ID] = doc.toDomain(snap.Ref.ID)
	}
	return products, nil
}

func (r *OrderRepository) collect(ctx context.Context, query firestore.Query) ([]domain.Order, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	orders := []domain.Order{}
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("orders.query", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, doc.toDomain(snap.Ref.ID))
	}
	return orders, nil
}

func countQuery(ctx context.Context, query firestore.Query) (int, error) {
	result, err := query.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return 0, err
	}
	value, ok := result["total"].(*firestorepb.Value)
	if !ok {
		return 0, errors.New("count aggregation returned no value")
	}
	return int(value.GetIntegerValue()), nil
}

func stockUpdates(product domain.Product, now time.Time) []firestore.Update {
	sizes := make([]sizeStockDocument, len(product.Sizes))
	for i, s := range product.Sizes {
		sizes[i] = sizeStockDocument{Size: s.Size, Stock: s.Stock}
	}
	return []firestore.Update{
		{Path: "sizes", Value: sizes},
		{Path: "updatedAt", Value: now},
	}
}

func unwrapAbort(op string, err error) error {
	var abort *abortError
	if errors.As(err, &abort) {
		var stockErr *repositories.StockError
		if errors.As(abort.err, &stockErr) && stockErr.Op == "" {
			stockErr.Op = op
		}
		return abort.err
	}
	return pfirestore.WrapError(op, err)
}
