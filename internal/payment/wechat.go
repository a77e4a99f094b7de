package payment

import (
	"context"

	"medschool-core/internal/errs"
)

// WechatGateway is the external collaborator boundary for WeChat Pay,
// on the same footing as AlipayGateway.
type WechatGateway interface {
	CreatePayment(ctx context.Context, orderID string, amountFen int64) (redirectURL string, err error)
	VerifyCallback(data []byte) (orderID string, paid bool, err error)
}

// Wechat formats the gateway call and parses the callback signature.
type Wechat struct {
	gateway WechatGateway
}

// NewWechat builds the Wechat strategy over gateway.
func NewWechat(gateway WechatGateway) *Wechat {
	return &Wechat{gateway: gateway}
}

func (w *Wechat) Pay(ctx context.Context, order Order, amount float64) (*Result, error) {
	url, err := w.gateway.CreatePayment(ctx, order.OrderID, yuanToFen(amount))
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "create wechat payment")
	}
	return &Result{PaymentMethod: MethodWechat, RedirectURL: url}, nil
}

func (w *Wechat) HandleCallback(_ context.Context, data []byte) (string, error) {
	orderID, paid, err := w.gateway.VerifyCallback(data)
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, err, "verify wechat callback")
	}
	if !paid {
		return "", errs.Business(40901, "wechat callback reports payment not completed")
	}
	return orderID, nil
}
