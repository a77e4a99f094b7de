package payment

import "context"

// Free is the zero-cost strategy for courses priced at 0: it marks
// the order paid without any external gateway round trip.
type Free struct{}

// NewFree builds the Free strategy.
func NewFree() *Free { return &Free{} }

func (Free) Pay(_ context.Context, order Order, _ float64) (*Result, error) {
	return &Result{PaymentMethod: MethodFree}, nil
}
