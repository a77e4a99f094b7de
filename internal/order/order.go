// Package order defines the minimal opaque order aggregate that C3's
// concrete example endpoint (/order/create) operates on, and wires
// course pricing lookup into payment strategy dispatch. Persistence
// is external (SPEC_FULL.md §3 Non-goals); this package only
// describes the shape and the create/get operations the API depends
// on.
package order

import (
	"context"
	"time"

	"medschool-core/internal/course"
	"medschool-core/internal/errs"
	"medschool-core/internal/payment"
)

// Status is the order's lifecycle state.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

// Order is the full aggregate (§3 "[ADDED] Order & payment data model").
type Order struct {
	OrderID       string         `json:"order_id"`
	UserID        string         `json:"user_id"`
	CourseID      string         `json:"course_id"`
	Amount        float64        `json:"amount"`
	PaymentMethod payment.Method `json:"payment_method"`
	Status        Status         `json:"status"`
	CreatedTime   time.Time      `json:"created_time"`
}

// Repository is the opaque external order store.
type Repository interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, orderID string) (Order, bool, error)
	UpdateStatus(ctx context.Context, orderID string, status Status) error
	// FindByUserAndCourse supports the "already purchased" business
	// rejection path.
	FindByUserAndCourse(ctx context.Context, userID, courseID string) (Order, bool, error)
}

// IDGenerator mints a new order id; injected so tests can supply a
// deterministic one.
type IDGenerator func() string

// Service orchestrates order creation against the course catalogue
// and the payment dispatcher.
type Service struct {
	orders   Repository
	courses  course.Repository
	payments *payment.Dispatcher
	newID    IDGenerator
}

// NewService builds a Service.
func NewService(orders Repository, courses course.Repository, payments *payment.Dispatcher, newID IDGenerator) *Service {
	return &Service{orders: orders, courses: courses, payments: payments, newID: newID}
}

// CreateRequest is the inbound shape for /order/create.
type CreateRequest struct {
	UserID        string
	CourseID      string
	PaymentMethod payment.Method
}

// CreateResult is returned to the handler: the persisted order plus
// whatever the chosen payment strategy produced (e.g. a redirect URL).
type CreateResult struct {
	Order  Order
	Result *payment.Result
}

// Create resolves the course, rejects a repeat purchase, persists a
// pending order, dispatches payment, and advances the order status to
// paid or failed based on the strategy's outcome. This is the
// concrete endpoint C3's idempotency gate wraps.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	c, ok, err := s.courses.Get(req.CourseID)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "look up course")
	}
	if !ok || !c.Active() {
		return nil, errs.NotFound("course not found or not on sale")
	}

	if existing, found, err := s.orders.FindByUserAndCourse(ctx, req.UserID, req.CourseID); err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "check existing order")
	} else if found && existing.Status == StatusPaid {
		return nil, errs.Business(40902, "course already purchased")
	}

	amount := coursePrice(c)
	o := Order{
		OrderID:       s.newID(),
		UserID:        req.UserID,
		CourseID:      req.CourseID,
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
		Status:        StatusPending,
		CreatedTime:   time.Now(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "persist order")
	}

	strategy, err := s.payments.Resolve(req.PaymentMethod)
	if err != nil {
		_ = s.orders.UpdateStatus(ctx, o.OrderID, StatusFailed)
		return nil, err
	}

	result, err := strategy.Pay(ctx, payment.Order{OrderID: o.OrderID, UserID: o.UserID, CourseID: o.CourseID}, amount)
	if err != nil {
		_ = s.orders.UpdateStatus(ctx, o.OrderID, StatusFailed)
		return nil, err
	}

	finalStatus := StatusPending
	if req.PaymentMethod == payment.MethodFree {
		finalStatus = StatusPaid
	}
	if err := s.orders.UpdateStatus(ctx, o.OrderID, finalStatus); err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "advance order status")
	}
	o.Status = finalStatus

	return &CreateResult{Order: o, Result: result}, nil
}

// Get reads back a single order.
func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	o, ok, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Order{}, errs.Wrap(errs.KindInternal, err, "look up order")
	}
	if !ok {
		return Order{}, errs.NotFound("order not found")
	}
	return o, nil
}

// HandleCallback marks an order paid from an asynchronous gateway
// callback, dispatching to the strategy's CallbackHandler. When the
// strategy reports the payment as not completed, its error is returned
// and the order's status is left unchanged.
func (s *Service) HandleCallback(ctx context.Context, method payment.Method, data []byte) error {
	strategy, err := s.payments.Resolve(method)
	if err != nil {
		return err
	}
	handler, ok := strategy.(payment.CallbackHandler)
	if !ok {
		return errs.Business(40003, "payment method does not accept callbacks")
	}
	orderID, err := handler.HandleCallback(ctx, data)
	if err != nil {
		return err
	}
	return s.orders.UpdateStatus(ctx, orderID, StatusPaid)
}

// coursePrice is a placeholder pricing rule: the relational price
// column lives outside this core's scope (§3 Non-goals), so price is
// derived from difficulty level until a real pricing table is wired
// in.
func coursePrice(c course.Course) float64 {
	if c.DifficultyLevel <= 0 {
		return 0
	}
	return float64(c.DifficultyLevel) * 99
}
