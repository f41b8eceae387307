package utils

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestJSONWritesPayloadAndHeaders(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(rec, 201, map[string]string{"status": "created"})

	if rec.Code != 201 {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["status"] != "created" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestJSONNilPayloadWritesNoBody(t *testing.T) {
	rec := httptest.NewRecorder()

	JSON(rec, 204, nil)

	if rec.Code != 204 {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}
}

func TestJSONErrorWrapsMessage(t *testing.T) {
	rec := httptest.NewRecorder()

	JSONError(rec, 409, "username taken")

	if rec.Code != 409 {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["error"] != "username taken" {
		t.Fatalf("unexpected body: %v", body)
	}
}
