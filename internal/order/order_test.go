package order

import (
	"context"
	"errors"
	"testing"

	"medschool-core/internal/course"
	"medschool-core/internal/errs"
	"medschool-core/internal/payment"
)

type fakeCourseRepo struct {
	courses map[string]course.Course
}

func (f *fakeCourseRepo) Get(id string) (course.Course, bool, error) {
	c, ok := f.courses[id]
	return c, ok, nil
}

func (f *fakeCourseRepo) All() ([]course.Course, error) {
	out := make([]course.Course, 0, len(f.courses))
	for _, c := range f.courses {
		out = append(out, c)
	}
	return out, nil
}

type fakeOrderRepo struct {
	orders map[string]Order
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[string]Order)}
}

func (f *fakeOrderRepo) Create(_ context.Context, o Order) error {
	f.orders[o.OrderID] = o
	return nil
}

func (f *fakeOrderRepo) Get(_ context.Context, orderID string) (Order, bool, error) {
	o, ok := f.orders[orderID]
	return o, ok, nil
}

func (f *fakeOrderRepo) UpdateStatus(_ context.Context, orderID string, status Status) error {
	o, ok := f.orders[orderID]
	if !ok {
		return errors.New("no such order")
	}
	o.Status = status
	f.orders[orderID] = o
	return nil
}

func (f *fakeOrderRepo) FindByUserAndCourse(_ context.Context, userID, courseID string) (Order, bool, error) {
	for _, o := range f.orders {
		if o.UserID == userID && o.CourseID == courseID {
			return o, true, nil
		}
	}
	return Order{}, false, nil
}

func sequentialID(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return prefix + "-" + string(rune('0'+n))
	}
}

func activeCourse(id string, difficulty int) course.Course {
	return course.Course{ID: id, DifficultyLevel: difficulty, Status: 1, SaleStatus: 1}
}

func TestCreateFreeOrderSettlesAsPaid(t *testing.T) {
	courses := &fakeCourseRepo{courses: map[string]course.Course{"c1": activeCourse("c1", 0)}}
	orders := newFakeOrderRepo()
	dispatcher := payment.NewDispatcher(payment.Dependencies{})
	svc := NewService(orders, courses, dispatcher, sequentialID("ord"))

	result, err := svc.Create(context.Background(), CreateRequest{UserID: "u1", CourseID: "c1", PaymentMethod: payment.MethodFree})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Order.Status != StatusPaid {
		t.Fatalf("expected a free order to settle as paid, got %q", result.Order.Status)
	}
	if result.Order.Amount != 0 {
		t.Fatalf("expected a zero-difficulty course to price at 0, got %v", result.Order.Amount)
	}
}

func TestCreateRejectsUnknownCourse(t *testing.T) {
	courses := &fakeCourseRepo{courses: map[string]course.Course{}}
	orders := newFakeOrderRepo()
	dispatcher := payment.NewDispatcher(payment.Dependencies{})
	svc := NewService(orders, courses, dispatcher, sequentialID("ord"))

	_, err := svc.Create(context.Background(), CreateRequest{UserID: "u1", CourseID: "missing", PaymentMethod: payment.MethodFree})
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.KindNotFound {
		t.Fatalf("expected a NotFound error, got %v", err)
	}
}

func TestCreateRejectsRepeatPurchase(t *testing.T) {
	courses := &fakeCourseRepo{courses: map[string]course.Course{"c1": activeCourse("c1", 1)}}
	orders := newFakeOrderRepo()
	orders.orders["prior"] = Order{OrderID: "prior", UserID: "u1", CourseID: "c1", Status: StatusPaid}
	dispatcher := payment.NewDispatcher(payment.Dependencies{})
	svc := NewService(orders, courses, dispatcher, sequentialID("ord"))

	_, err := svc.Create(context.Background(), CreateRequest{UserID: "u1", CourseID: "c1", PaymentMethod: payment.MethodFree})
	e, ok := errs.As(err)
	if !ok || e.Kind != errs.KindBusiness {
		t.Fatalf("expected a Business rejection for a repeat purchase, got %v", err)
	}
}

func TestCreateRejectsUnsupportedPaymentMethod(t *testing.T) {
	courses := &fakeCourseRepo{courses: map[string]course.Course{"c1": activeCourse("c1", 1)}}
	orders := newFakeOrderRepo()
	dispatcher := payment.NewDispatcher(payment.Dependencies{})
	svc := NewService(orders, courses, dispatcher, sequentialID("ord"))

	_, err := svc.Create(context.Background(), CreateRequest{UserID: "u1", CourseID: "c1", PaymentMethod: "bitcoin"})
	if err == nil {
		t.Fatal("expected an error for an unsupported payment method")
	}
	stored, found, _ := orders.Get(context.Background(), "ord-1")
	if !found || stored.Status != StatusFailed {
		t.Fatalf("expected the order to be marked failed after dispatch rejection, got %+v found=%v", stored, found)
	}
}
