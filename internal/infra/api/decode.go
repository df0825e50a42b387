package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jobflow/internal/domain/model"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// looseString accepts any JSON scalar and keeps its text. null decodes to "".
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
	default:
		*s = looseString(b)
	}
	return nil
}

func (s looseString) String() string { return string(s) }

// Float parses the value as a number; blank or unparsable text yields NaN.
func (s looseString) Float() float64 {
	t := strings.TrimSpace(string(s))
	if t == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// looseDate accepts RFC 3339 timestamps or bare YYYY-MM-DD dates; "" and null clear it.
type looseDate struct {
	t *time.Time
}

func (d *looseDate) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("date must be a string")
	}
	if s == nil || strings.TrimSpace(*s) == "" {
		d.t = nil
		return nil
	}
	v := strings.TrimSpace(*s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			t = t.UTC()
			d.t = &t
			return nil
		}
	}
	return errors.New("unrecognized date " + strconv.Quote(v))
}

func (d looseDate) Time() *time.Time { return d.t }

// readPayUResponse accepts the gateway's form post as well as a JSON body.
func readPayUResponse(w http.ResponseWriter, r *http.Request) (*model.PayUResponse, error) {
	get, err := payuGetter(w, r)
	if err != nil {
		return nil, err
	}
	resp := &model.PayUResponse{
		Status:      get("status"),
		TxnID:       get("txnid"),
		Amount:      get("amount"),
		ProductInfo: get("productinfo"),
		FirstName:   get("firstname"),
		Email:       get("email"),
		Key:         get("key"),
		Hash:        get("hash"),
	}
	for i := range resp.UDF {
		resp.UDF[i] = get("udf" + strconv.Itoa(i+1))
	}
	return resp, nil
}

func payuGetter(w http.ResponseWriter, r *http.Request) (func(string) string, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		var body map[string]looseString
		if err := decodeJSON(w, r, &body); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return func(k string) string { return body[k].String() }, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	return r.PostForm.Get, nil
}
