package bot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type mockNotifier struct {
	name string
	err  error
	sent []string
}

func (m *mockNotifier) Name() string { return m.name }

func (m *mockNotifier) Notify(ctx context.Context, text string) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, text)
	return nil
}

func TestBroadcastNotConfigured(t *testing.T) {
	b := NewBroadcast()
	if err := b.Notify(context.Background(), "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}

	b = NewBroadcast(nil, nil)
	if len(b.Channels()) != 0 {
		t.Errorf("expected nil channels to be skipped, got %v", b.Channels())
	}
}

func TestBroadcastSendsToAll(t *testing.T) {
	a := &mockNotifier{name: "a"}
	c := &mockNotifier{name: "c"}
	b := NewBroadcast(a, c)

	if err := b.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(a.sent) != 1 || len(c.sent) != 1 {
		t.Errorf("expected one message per channel, got %d and %d", len(a.sent), len(c.sent))
	}
	if got := strings.Join(b.Channels(), ","); got != "a,c" {
		t.Errorf("unexpected channel order: %s", got)
	}
}

func TestBroadcastContinuesAfterFailure(t *testing.T) {
	failing := &mockNotifier{name: "broken", err: ErrDeliveryFailed}
	ok := &mockNotifier{name: "ok"}
	b := NewBroadcast(failing, ok)

	err := b.Notify(context.Background(), "hello")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error should name the failing channel: %v", err)
	}
	if len(ok.sent) != 1 {
		t.Error("later channels should still receive the message")
	}
}

func TestNewLineRequiresCredentials(t *testing.T) {
	if NewLine("", "U123") != nil {
		t.Error("expected nil without token")
	}
	if NewLine("token", "") != nil {
		t.Error("expected nil without user")
	}
	if NewLine("token", "U123") == nil {
		t.Error("expected notifier with both credentials")
	}
}

func TestLineNotify(t *testing.T) {
	var gotAuth, gotType string
	var payload linePush
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	l := NewLine("secret", "U123", WithLineEndpoint(server.URL))
	if err := l.Notify(context.Background(), "📰 日経新聞 本日のサマリー"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if gotAuth != "Bearer secret" {
		t.Errorf("unexpected Authorization header: %q", gotAuth)
	}
	if gotType != "application/json" {
		t.Errorf("unexpected Content-Type: %q", gotType)
	}
	if payload.To != "U123" {
		t.Errorf("expected to=U123, got %q", payload.To)
	}
	if len(payload.Messages) != 1 || payload.Messages[0].Type != "text" || payload.Messages[0].Text != "📰 日経新聞 本日のサマリー" {
		t.Errorf("unexpected messages: %+v", payload.Messages)
	}
}

func TestLineNotifyRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Authentication failed"}`))
	}))
	defer server.Close()

	l := NewLine("bad", "U123", WithLineEndpoint(server.URL))
	err := l.Notify(context.Background(), "hi")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "Authentication failed") {
		t.Errorf("error should carry status and body: %v", err)
	}
}

func TestLineNotifyUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	l := NewLine("token", "U123", WithLineEndpoint(url))
	if err := l.Notify(context.Background(), "hi"); !errors.Is(err, ErrDeliveryFailed) {
		t.Errorf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestNewTelegramRequiresCredentials(t *testing.T) {
	if NewTelegram("", 42) != nil {
		t.Error("expected nil without token")
	}
	if NewTelegram("token", 0) != nil {
		t.Error("expected nil without chat")
	}
}

func newTelegramServer(t *testing.T, sendStatus int) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var texts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"digest","username":"digest_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			if sendStatus != http.StatusOK {
				w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
				return
			}
			mu.Lock()
			texts = append(texts, r.PostForm.Get("text"))
			mu.Unlock()
			w.Write([]byte(`{"ok":true,"result":{"message_id":7,"date":0,"chat":{"id":42,"type":"private"}}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server, &texts
}

func TestTelegramNotify(t *testing.T) {
	server, texts := newTelegramServer(t, http.StatusOK)

	tg := NewTelegram("token", 42, WithTelegramEndpoint(server.URL+"/bot%s/%s"))
	if err := tg.Notify(context.Background(), "hello"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if err := tg.Notify(context.Background(), "again"); err != nil {
		t.Fatalf("second Notify failed: %v", err)
	}

	if len(*texts) != 2 || (*texts)[0] != "hello" || (*texts)[1] != "again" {
		t.Errorf("unexpected sent texts: %v", *texts)
	}
}

func TestTelegramNotifyRejected(t *testing.T) {
	server, _ := newTelegramServer(t, http.StatusBadRequest)

	tg := NewTelegram("token", 42, WithTelegramEndpoint(server.URL+"/bot%s/%s"))
	if err := tg.Notify(context.Background(), "hello"); !errors.Is(err, ErrDeliveryFailed) {
		t.Errorf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestTelegramNotifyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tg := NewTelegram("token", 42, WithTelegramEndpoint("http://127.0.0.1:1/bot%s/%s"))
	if err := tg.Notify(ctx, "hello"); !errors.Is(err, ErrDeliveryFailed) {
		t.Errorf("expected ErrDeliveryFailed, got %v", err)
	}
}
