package payment

import (
	"context"

	"medschool-core/internal/errs"
)

// AlipayGateway is the external collaborator boundary for the Alipay
// open platform — the actual HTTP call and signature verification are
// out of scope (§1 Non-goals list third-party gateway internals
// alongside the object store / OCR clients), so this interface is the
// seam a concrete client is injected through.
type AlipayGateway interface {
	CreatePayment(ctx context.Context, orderID string, amountFen int64) (redirectURL string, err error)
	VerifyCallback(data []byte) (orderID string, paid bool, err error)
}

// Alipay formats the gateway call and parses the callback signature;
// it holds no payment logic of its own beyond that translation.
type Alipay struct {
	gateway AlipayGateway
}

// NewAlipay builds the Alipay strategy over gateway.
func NewAlipay(gateway AlipayGateway) *Alipay {
	return &Alipay{gateway: gateway}
}

func (a *Alipay) Pay(ctx context.Context, order Order, amount float64) (*Result, error) {
	url, err := a.gateway.CreatePayment(ctx, order.OrderID, yuanToFen(amount))
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "create alipay payment")
	}
	return &Result{PaymentMethod: MethodAlipay, RedirectURL: url}, nil
}

func (a *Alipay) HandleCallback(_ context.Context, data []byte) (string, error) {
	orderID, paid, err := a.gateway.VerifyCallback(data)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, err, "verify alipay callback")
	}
	if !paid {
		return "", errs.Business(40901, "alipay callback reports payment not completed")
	}
	return orderID, nil
}

func yuanToFen(amount float64) int64 {
	return int64(amount*100 + 0.5)
}
