// Package payment implements the payment strategy dispatch: a tagged
// variant {Free, Alipay, Wechat} behind a Strategy interface, selected
// by a map[Method]func(Dependencies) Strategy constructor table keyed
// by payment_method.
package payment

import (
	"context"
	"fmt"

	"medschool-core/internal/errs"
)

// Method identifies a payment strategy by its external name, the
// payment_method field on an order.
type Method string

const (
	MethodFree   Method = "free"
	MethodAlipay Method = "alipay"
	MethodWechat Method = "wechat"
)

// Order is the minimal view of an order a Strategy needs to initiate
// payment; the full aggregate lives in internal/order.
type Order struct {
	OrderID  string
	UserID   string
	CourseID string
}

// Result is what initiating payment with a gateway returns to the
// caller — a redirect URL, an embedded form, or nothing for Free.
type Result struct {
	PaymentMethod Method
	RedirectURL   string // empty for Free or a gateway that embeds a form
}

// Strategy is one payment method's behavior.
type Strategy interface {
	Pay(ctx context.Context, order Order, amount float64) (*Result, error)
}

// CallbackHandler is implemented by strategies whose gateway calls
// back asynchronously to confirm payment (Alipay, Wechat); Free has
// no callback, so it does not implement this interface.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, data []byte) (orderID string, err error)
}

// constructors is the dispatch table: one constructor per supported
// method, mirroring the teacher's ring-node lookup table shape.
var constructors = map[Method]func(Dependencies) Strategy{
	MethodFree:   func(d Dependencies) Strategy { return NewFree() },
	MethodAlipay: func(d Dependencies) Strategy { return NewAlipay(d.AlipayGateway) },
	MethodWechat: func(d Dependencies) Strategy { return NewWechat(d.WechatGateway) },
}

// Dependencies bundles the external gateway clients every constructor
// may need; strategies that don't need a given dependency ignore it.
type Dependencies struct {
	AlipayGateway AlipayGateway
	WechatGateway WechatGateway
}

// Dispatcher resolves a Method to its Strategy.
type Dispatcher struct {
	deps Dependencies
}

// NewDispatcher builds a Dispatcher over deps.
func NewDispatcher(deps Dependencies) *Dispatcher {
	return &Dispatcher{deps: deps}
}

// Resolve looks up the Strategy for method, returning a BusinessError
// if the method is unrecognized.
func (d *Dispatcher) Resolve(method Method) (Strategy, error) {
	ctor, ok := constructors[method]
	if !ok {
		return nil, errs.Business(40002, fmt.Sprintf("unsupported payment method %q", method))
	}
	return ctor(d.deps), nil
}
