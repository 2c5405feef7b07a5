package chatwoot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(nil, srv.URL, 1, "test-key", 5*time.Second)
}

func TestDoSendsAPIKeyHeader(t *testing.T) {
	t.Parallel()

	var gotKey string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api_access_token")
		_, _ = w.Write([]byte(`{"id":1}`))
	})

	if _, err := client.GetConversation(context.Background(), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "test-key" {
		t.Fatalf("unexpected api key header: %q", gotKey)
	}
}

func TestDoClassifiesRejection(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	})

	_, err := client.GetConversation(context.Background(), 1)
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("expected RejectedError, got %v", err)
	}
	if rejected.Status != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", rejected.Status)
	}
	if rejected.Conflict() {
		t.Fatal("403 must not count as conflict")
	}
	if IsTimeout(err) {
		t.Fatal("rejection must not count as timeout")
	}
}

func TestDoClassifiesTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(nil, srv.URL, 1, "key", 20*time.Millisecond)

	_, err := client.GetConversation(context.Background(), 1)
	if !IsTimeout(err) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		t.Fatal("timeout must not be a rejection")
	}
}

func TestUnwrapObjectPriorityOrder(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"nested payload contact", `{"payload":{"contact":{"id":7,"identifier":"telegram_1"}}}`},
		{"flat payload", `{"payload":{"id":7,"identifier":"telegram_1"}}`},
		{"data envelope", `{"data":{"id":7,"identifier":"telegram_1"}}`},
		{"bare object", `{"id":7,"identifier":"telegram_1"}`},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			raw, err := unwrapObject([]byte(tc.body), contactObjectPaths)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var contact Contact
			if err := json.Unmarshal(raw, &contact); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if contact.ID != 7 {
				t.Fatalf("unexpected contact id: %d", contact.ID)
			}
		})
	}
}

func TestUnwrapObjectRejectsUnknownShape(t *testing.T) {
	t.Parallel()

	_, err := unwrapObject([]byte(`[1,2,3]`), conversationObjectPaths)
	if !errors.Is(err, ErrUnrecognizedResponse) {
		t.Fatalf("expected ErrUnrecognizedResponse, got %v", err)
	}
}

func TestUnwrapListAcceptsEmptyPage(t *testing.T) {
	t.Parallel()

	raw, err := unwrapList([]byte(`{"data":{"payload":[]}}`), conversationListPaths)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []Conversation
	if err := json.Unmarshal(raw, &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty page, got %d items", len(items))
	}
}

func TestConversationSourceTagLocations(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		conv Conversation
		want string
	}{
		{"top level", Conversation{SourceID: "telegram_1"}, "telegram_1"},
		{"additional attributes", Conversation{AdditionalAttributes: map[string]any{"source_id": "telegram_2"}}, "telegram_2"},
		{"meta sender identifier", Conversation{Meta: ConversationMeta{Sender: ConversationSender{Identifier: "telegram_3"}}}, "telegram_3"},
		{"absent", Conversation{}, ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.conv.SourceTag(); got != tc.want {
				t.Fatalf("unexpected tag: %q", got)
			}
		})
	}
}
