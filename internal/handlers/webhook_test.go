package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/wootbridge/wootbridge/internal/bridge"
)

type fakeForwarder struct {
	events chan bridge.WebhookEvent
	err    error
}

func (f *fakeForwarder) Forward(_ context.Context, event bridge.WebhookEvent) error {
	if f.events != nil {
		f.events <- event
	}
	return f.err
}

func webhookRequest(t *testing.T, handler *WebhookHandler, body string, decorate func(*http.Request)) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/chatwoot", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	return rec, handler.Receive(e.NewContext(req, rec))
}

const outgoingBody = `{"event":"message_created","message_type":"outgoing","content":"hi","conversation":{"id":20,"source_id":"telegram_42"}}`

func TestWebhookAcceptsTokenHeader(t *testing.T) {
	t.Parallel()

	forwarder := &fakeForwarder{events: make(chan bridge.WebhookEvent, 1)}
	handler := NewWebhookHandler(nil, forwarder, "hook-secret")

	rec, err := webhookRequest(t, handler, outgoingBody, func(req *http.Request) {
		req.Header.Set("x-webhook-token", "hook-secret")
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	select {
	case event := <-forwarder.events:
		if event.Conversation == nil || event.Conversation.SourceID != "telegram_42" {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}
}

func TestWebhookAcceptsTokenQueryParam(t *testing.T) {
	t.Parallel()

	forwarder := &fakeForwarder{events: make(chan bridge.WebhookEvent, 1)}
	handler := NewWebhookHandler(nil, forwarder, "hook-secret")

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/chatwoot?token=hook-secret", strings.NewReader(outgoingBody))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := handler.Receive(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	select {
	case <-forwarder.events:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}
}

func TestWebhookRejectsMissingToken(t *testing.T) {
	t.Parallel()

	handler := NewWebhookHandler(nil, &fakeForwarder{}, "hook-secret")
	_, err := webhookRequest(t, handler, outgoingBody, nil)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestWebhookRejectsWrongToken(t *testing.T) {
	t.Parallel()

	handler := NewWebhookHandler(nil, &fakeForwarder{}, "hook-secret")
	_, err := webhookRequest(t, handler, outgoingBody, func(req *http.Request) {
		req.Header.Set("x-webhook-token", "guessed")
	})
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestWebhookOpenWhenSecretUnset(t *testing.T) {
	t.Parallel()

	forwarder := &fakeForwarder{events: make(chan bridge.WebhookEvent, 1)}
	handler := NewWebhookHandler(nil, forwarder, "")
	rec, err := webhookRequest(t, handler, outgoingBody, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	handler := NewWebhookHandler(nil, &fakeForwarder{}, "")
	_, err := webhookRequest(t, handler, `{"conversation":"not-an-object"}`, nil)
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestWebhookRespondsOKDespiteForwardFailure(t *testing.T) {
	t.Parallel()

	forwarder := &fakeForwarder{events: make(chan bridge.WebhookEvent, 1), err: errors.New("transport down")}
	handler := NewWebhookHandler(nil, forwarder, "")
	rec, err := webhookRequest(t, handler, outgoingBody, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("forward outcome must not change the response: %d", rec.Code)
	}
	select {
	case <-forwarder.events:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}
}
