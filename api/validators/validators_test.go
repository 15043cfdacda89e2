package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
)

type purchaseBody struct {
	Credits  int    `json:"credits" validate:"required,min=1"`
	Currency string `json:"currency" validate:"required,len=3"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"credits":0,"currency":"USD"}`))
	var body purchaseBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
	details, ok := pkgerrors.As(err).Details().(map[string]string)
	if !ok || details["credits"] == "" {
		t.Fatalf("expected field detail keyed by json name, got %v", pkgerrors.As(err).Details())
	}
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"credits":1,"currency":"USD","extra":true}`))
	var body purchaseBody
	if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestDecodeJSONBodyRejectsEmptyAndTrailingInput(t *testing.T) {
	for _, raw := range []string{"", `{"credits":1,"currency":"USD"}{"credits":2,"currency":"USD"}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		var body purchaseBody
		if err := DecodeJSONBody(req, &body); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("body %q: expected validation error got %v", raw, err)
		}
	}
}

func TestParseQueryLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	limit, err := ParseQueryLimit(req, "limit")
	if err != nil || limit != 500 {
		t.Fatalf("expected raw 500 got %d (%v)", limit, err)
	}

	req = httptest.NewRequest(http.MethodGet, "/?limit=abc", nil)
	if _, err := ParseQueryLimit(req, "limit"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "invitationId", id.String())
	got, err := ParseUUIDParam(req, "invitationId")
	if err != nil || got != id {
		t.Fatalf("expected %s got %s (%v)", id, got, err)
	}

	req = withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "invitationId", "nope")
	if _, err := ParseUUIDParam(req, "invitationId"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "trims", in: "  refund  ", max: 0, want: "refund"},
		{name: "drops control chars", in: "bonus\x00\x07 credit", max: 0, want: "bonus credit"},
		{name: "keeps newline", in: "line one\nline two", max: 0, want: "line one\nline two"},
		{name: "cuts on runes", in: "Zoë Müller", max: 3, want: "Zoë"},
		{name: "under limit", in: "ok", max: 10, want: "ok"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.max); got != tc.want {
			t.Fatalf("%s: expected %q got %q", tc.name, tc.want, got)
		}
	}
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	raw := `{"credits":1,"currency":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
	var body purchaseBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error got %v", err)
	}
	if !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size message got %v", err)
	}
}

func TestRuleMessageFormatsParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"credits":3,"currency":"EURO"}`))
	var body purchaseBody
	err := DecodeJSONBody(req, &body)
	details, _ := pkgerrors.As(err).Details().(map[string]string)
	if details["currency"] != "must be exactly 3 characters" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestParseQueryBool(t *testing.T) {
	cases := map[string]struct {
		want    bool
		wantErr bool
	}{
		"":            {want: false},
		"?flag=true":  {want: true},
		"?flag=+1+":   {want: true},
		"?flag=0":     {want: false},
		"?flag=maybe": {wantErr: true},
	}
	for query, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
		got, err := ParseQueryBool(req, "flag")
		if tc.wantErr {
			if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("%q: expected validation error got %v", query, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %v (%v), want %v", query, got, err, tc.want)
		}
	}
}
