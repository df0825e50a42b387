package payment

import (
	"jobflow/internal/domain"
	"jobflow/internal/domain/model"
	"jobflow/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*PayUGateway)(nil)

const (
	payuLiveURL = "https://secure.payu.in/_payment"
	payuTestURL = "https://test.payu.in/_payment"
)

// PayUGateway signs checkout forms and verifies callbacks with the merchant salt.
// Key and salt may be empty at construction; operations report them missing.
type PayUGateway struct {
	key  string
	salt string
	live bool
}

func NewPayUGateway(key, salt string, live bool) *PayUGateway {
	return &PayUGateway{key: key, salt: salt, live: live}
}

func (g *PayUGateway) Name() string { return "payu" }

func (g *PayUGateway) ActionURL() string {
	if g.live {
		return payuLiveURL
	}
	return payuTestURL
}

func (g *PayUGateway) Ready() error {
	if g.key == "" || g.salt == "" {
		return domain.MissingConfig("PAYU_KEY or PAYU_SALT not configured.")
	}
	return nil
}

func (g *PayUGateway) SignRequest(req *model.PayURequest) error {
	if err := g.Ready(); err != nil {
		return err
	}
	req.Key = g.key
	req.Hash = Digest(RequestHashString(req, g.salt))
	return nil
}

func (g *PayUGateway) VerifyResponse(resp *model.PayUResponse) (bool, error) {
	if g.salt == "" {
		return false, domain.MissingConfig("PAYU_SALT not configured.")
	}
	expected := Digest(ResponseHashString(resp, g.salt))
	return hashEqual(expected, resp.Hash), nil
}
