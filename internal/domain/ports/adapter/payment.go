package adapter

import "jobflow/internal/domain/model"

// PaymentGateway is the hex port for redirect-style payment providers.
// Gateways sign forms locally and verify signed callbacks; nothing here talks
// to the provider over the network.
type PaymentGateway interface {
	Name() string

	// ActionURL is where the browser posts the signed checkout form.
	ActionURL() string

	// Ready fails with domain.ErrConfigMissing unless both merchant key and salt are set.
	Ready() error

	// SignRequest fills req.Key and req.Hash. It fails with domain.ErrConfigMissing
	// when the merchant key or salt is not configured.
	SignRequest(req *model.PayURequest) error

	// VerifyResponse recomputes the callback signature and compares it with resp.Hash.
	// A mismatch is reported as false, never as an error.
	VerifyResponse(resp *model.PayUResponse) (bool, error)
}
