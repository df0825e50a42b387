package api

import (
	"errors"
	"net/http"

	"jobflow/internal/domain"
	"jobflow/internal/infra/logging"
	"jobflow/internal/infra/metrics"
	"jobflow/internal/usecase"
)

type payuInitRequest struct {
	Amount      looseString `json:"amount"`
	Plan        looseString `json:"plan"`
	ProductInfo looseString `json:"productinfo"`
	FirstName   looseString `json:"firstname"`
	Email       looseString `json:"email"`
	Phone       looseString `json:"phone"`
}

// payuForm mirrors the fields the browser posts to the gateway.
type payuForm struct {
	Key         string `json:"key"`
	TxnID       string `json:"txnid"`
	Amount      string `json:"amount"`
	ProductInfo string `json:"productinfo"`
	FirstName   string `json:"firstname"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	SURL        string `json:"surl"`
	FURL        string `json:"furl"`
	UDF1        string `json:"udf1"`
	UDF2        string `json:"udf2"`
	Hash        string `json:"hash"`
}

type payuInitResponse struct {
	Action  string   `json:"action"`
	Payload payuForm `json:"payload"`
}

type payuVerifyResponse struct {
	Valid bool `json:"valid"`
}

func (s *Server) handlePayUInit(w http.ResponseWriter, r *http.Request) {
	var req payuInitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		// Treat an unreadable body like an empty one so config and amount checks still run in order.
		req = payuInitRequest{}
	}

	res, err := s.payments.Initiate(r.Context(), currentUser(r), usecase.InitiateInput{
		Amount:      req.Amount.Float(),
		Plan:        req.Plan.String(),
		ProductInfo: req.ProductInfo.String(),
		FirstName:   req.FirstName.String(),
		Email:       req.Email.String(),
		Phone:       req.Phone.String(),
	})
	if err != nil {
		metrics.IncPayUInit(initResult(err))
		writeError(w, r, s.log, err)
		return
	}
	metrics.IncPayUInit("ok")

	p := res.Request
	writeJSON(w, r, http.StatusOK, payuInitResponse{
		Action: res.Action,
		Payload: payuForm{
			Key:         p.Key,
			TxnID:       p.TxnID,
			Amount:      p.Amount,
			ProductInfo: p.ProductInfo,
			FirstName:   p.FirstName,
			Email:       p.Email,
			Phone:       p.Phone,
			SURL:        p.SURL,
			FURL:        p.FURL,
			UDF1:        p.UDF[0],
			UDF2:        p.UDF[1],
			Hash:        p.Hash,
		},
	})
}

func initResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrConfigMissing):
		return "not_configured"
	case errors.Is(err, usecase.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, usecase.ErrEmailRequired):
		return "missing_email"
	default:
		return "error"
	}
}

// handlePayUVerify is a read-only signature check for the success page.
func (s *Server) handlePayUVerify(w http.ResponseWriter, r *http.Request) {
	resp, err := readPayUResponse(w, r)
	if err != nil {
		metrics.IncPayUVerify("missing_fields")
		writeMessage(w, r, http.StatusBadRequest, "Missing required PayU fields.")
		return
	}

	valid, err := s.payments.Verify(r.Context(), resp)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConfigMissing):
			metrics.IncPayUVerify("not_configured")
		case errors.Is(err, domain.ErrInvalidArgument):
			metrics.IncPayUVerify("missing_fields")
		}
		writeError(w, r, s.log, err)
		return
	}
	if valid {
		metrics.IncPayUVerify("valid")
	} else {
		metrics.IncPayUVerify("invalid")
	}
	writeJSON(w, r, http.StatusOK, payuVerifyResponse{Valid: valid})
}

// handlePayUCallback is the gateway's surl/furl target. Errors are plain text
// because the caller is a browser mid-redirect, not the SPA.
func (s *Server) handlePayUCallback(w http.ResponseWriter, r *http.Request) {
	resp, err := readPayUResponse(w, r)
	if err != nil {
		metrics.IncPayUCallback("missing_fields")
		http.Error(w, "Missing PayU fields.", http.StatusBadRequest)
		return
	}

	res, err := s.payments.HandleCallback(r.Context(), resp)
	if err != nil && res == nil {
		status := statusFor(err)
		msg, ok := domain.Message(err)
		switch {
		case errors.Is(err, domain.ErrConfigMissing):
			metrics.IncPayUCallback("not_configured")
		case errors.Is(err, domain.ErrInvalidArgument):
			metrics.IncPayUCallback("missing_fields")
		default:
			metrics.IncPayUCallback("error")
		}
		if !ok {
			l := logging.With(r.Context(), s.log)
			l.Error().Err(err).Msg("payu callback failed")
			msg = msgInternal
		}
		http.Error(w, msg, status)
		return
	}

	switch {
	case err != nil:
		metrics.IncPayUCallback("error")
	case !res.Valid:
		metrics.IncPayUCallback("invalid_hash")
	case !res.Succeeded:
		metrics.IncPayUCallback("not_success")
	case res.Duplicate:
		metrics.IncPayUCallback("duplicate")
	case res.Granted:
		metrics.IncPayUCallback("granted")
		metrics.IncPremiumGrant(string(res.Plan))
	default:
		metrics.IncPayUCallback("not_granted")
	}
	http.Redirect(w, r, res.RedirectURL, http.StatusFound)
}
