package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMXResponseBuilderDefaults(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().Write(rr)

	if rr.Code != http.StatusOK {
		t.Errorf("default status = %d", rr.Code)
	}
	if rr.Header().Get("HX-Trigger") != "" {
		t.Error("no triggers should produce no HX-Trigger header")
	}
}

func TestHTMXResponseBuilderTriggers(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHTMXResponse().
		TriggerEntryChanged(2024).
		TriggerFormReset().
		TriggerSuccessNotification("Đã lưu").
		Write(rr)

	raw := rr.Header().Get("HX-Trigger")
	var triggers map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &triggers); err != nil {
		t.Fatalf("HX-Trigger not valid JSON: %v (%q)", err, raw)
	}
	for _, name := range []string{"entry:changed", "form:reset", "show-notification"} {
		if _, ok := triggers[name]; !ok {
			t.Errorf("missing trigger %q in %q", name, raw)
		}
	}

	notif, ok := triggers["show-notification"].(map[string]interface{})
	if !ok {
		t.Fatal("show-notification payload is not an object")
	}
	if notif["type"] != "success" || notif["message"] != "Đã lưu" {
		t.Errorf("unexpected notification payload %v", notif)
	}
}

func TestErrorResponseEscapesHTML(t *testing.T) {
	rr := httptest.NewRecorder()
	BadRequestError(`<script>alert("x")</script>`).Write(rr)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rr.Code)
	}
	body := rr.Body.String()
	if strings.Contains(body, "<script>") {
		t.Errorf("message not escaped: %s", body)
	}
	if !strings.Contains(body, `class="error"`) {
		t.Errorf("missing error wrapper: %s", body)
	}
}

func TestErrorResponseStatusCodes(t *testing.T) {
	cases := []struct {
		builder *HTMXResponseBuilder
		want    int
	}{
		{BadRequestError("x"), http.StatusBadRequest},
		{UnprocessableEntityError("x"), http.StatusUnprocessableEntity},
		{InternalServerError("x"), http.StatusInternalServerError},
		{NotFoundError("x"), http.StatusNotFound},
		{ForbiddenError("x"), http.StatusForbidden},
		{ConflictError("x"), http.StatusConflict},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		tc.builder.Write(rr)
		if rr.Code != tc.want {
			t.Errorf("status = %d, want %d", rr.Code, tc.want)
		}
	}
}

func TestMethodNotAllowedSetsAllowHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	MethodNotAllowedError("POST, DELETE").Write(rr)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d", rr.Code)
	}
	if allow := rr.Header().Get("Allow"); allow != "POST, DELETE" {
		t.Errorf("Allow = %q", allow)
	}
}

func TestRequireMethodHelpers(t *testing.T) {
	post := httptest.NewRequest(http.MethodPost, "/x", nil)
	if resp := RequirePOST(post); resp != nil {
		t.Error("POST should pass RequirePOST")
	}
	get := httptest.NewRequest(http.MethodGet, "/x", nil)
	if resp := RequirePOST(get); resp == nil {
		t.Error("GET should fail RequirePOST")
	}
	del := httptest.NewRequest(http.MethodDelete, "/x", nil)
	if resp := RequireDeleteOrPOST(del); resp != nil {
		t.Error("DELETE should pass RequireDeleteOrPOST")
	}
}
