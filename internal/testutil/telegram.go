package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"

	tele "gopkg.in/telebot.v3"
)

// TelegramCall is one Bot API request received by TelegramServer
type TelegramCall struct {
	Method string
	Params map[string]any
}

// TelegramServer fakes the Bot API. Methods answer with a canned success
// unless overridden with Respond.
type TelegramServer struct {
	*httptest.Server

	mu        sync.Mutex
	calls     []TelegramCall
	responses map[string]string
}

const okMessage = `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`

// NewTelegramServer starts a fake Bot API closed at the end of the test
func NewTelegramServer(t *testing.T) *TelegramServer {
	t.Helper()

	s := &TelegramServer{
		responses: map[string]string{
			"sendMessage":   okMessage,
			"getChatMember": `{"ok":true,"result":{"status":"member","user":{"id":1}}}`,
		},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *TelegramServer) serve(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)

	params := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&params)

	s.mu.Lock()
	s.calls = append(s.calls, TelegramCall{Method: method, Params: params})
	body, ok := s.responses[method]
	s.mu.Unlock()

	if !ok {
		body = `{"ok":true,"result":true}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

// Respond overrides the reply to a Bot API method
func (s *TelegramServer) Respond(method, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method] = body
}

// Calls returns the requests made to method, oldest first
func (s *TelegramServer) Calls(method string) []TelegramCall {
	s.mu.Lock()
	defer s.mu.Unlock()

	var calls []TelegramCall
	for _, c := range s.calls {
		if c.Method == method {
			calls = append(calls, c)
		}
	}
	return calls
}

// SentTo returns the texts of sendMessage calls addressed to chatID
func (s *TelegramServer) SentTo(chatID string) []string {
	var texts []string
	for _, c := range s.Calls("sendMessage") {
		if c.Params["chat_id"] == chatID {
			text, _ := c.Params["text"].(string)
			texts = append(texts, text)
		}
	}
	return texts
}

// NewTestBot creates an offline bot that talks to srv and handles
// updates synchronously
func NewTestBot(t *testing.T, srv *TelegramServer) *tele.Bot {
	t.Helper()

	bot, err := tele.NewBot(tele.Settings{
		URL:         srv.URL,
		Token:       "test-token",
		Offline:     true,
		Synchronous: true,
	})
	if err != nil {
		t.Fatalf("create test bot: %v", err)
	}
	return bot
}
