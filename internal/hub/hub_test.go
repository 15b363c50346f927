package hub

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"chat-window/internal/chat"
	"chat-window/internal/models"
	"chat-window/internal/transport"
	"chat-window/internal/types"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type testServer struct {
	hub     *Hub
	metrics *Metrics
	srv     *httptest.Server
}

func startHub(t *testing.T, opts Options) *testServer {
	t.Helper()
	metrics := NewMetrics(prometheus.NewRegistry())
	h := New(NewStore(1000), metrics, nil, opts)
	go h.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWS)
	mux.HandleFunc("/health", h.Health)
	srv := httptest.NewServer(mux)

	t.Cleanup(srv.Close)
	t.Cleanup(h.Stop)
	return &testServer{hub: h, metrics: metrics, srv: srv}
}

func (s *testServer) url(query string) string {
	u := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

// wsPeer is a raw websocket client that unbatches frames.
type wsPeer struct {
	conn    *websocket.Conn
	pending []types.Envelope
}

func (s *testServer) dial(t *testing.T, query string) *wsPeer {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url(query), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return s.hub.ClientCount() > 0
	}, 2*time.Second, 5*time.Millisecond)
	return &wsPeer{conn: conn}
}

func (p *wsPeer) next(t *testing.T) types.Envelope {
	t.Helper()
	for len(p.pending) == 0 {
		p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, frame, err := p.conn.ReadMessage()
		require.NoError(t, err)
		for _, line := range bytes.Split(frame, []byte{'\n'}) {
			env, err := types.ParseEnvelope(line)
			require.NoError(t, err)
			p.pending = append(p.pending, env)
		}
	}
	env := p.pending[0]
	p.pending = p.pending[1:]
	return env
}

func (p *wsPeer) write(t *testing.T, msgType types.MessageType, data any) {
	t.Helper()
	env, err := types.NewEnvelope(msgType, data)
	require.NoError(t, err)
	require.NoError(t, p.conn.WriteJSON(env))
}

func nextMessage(t *testing.T, p *wsPeer) models.Message {
	t.Helper()
	env := p.next(t)
	require.Equal(t, types.TypeMessage, env.Type)
	msg, err := types.DecodeMessage(env)
	require.NoError(t, err)
	return msg
}

func TestPostIsBroadcastToEveryClient(t *testing.T) {
	s := startHub(t, Options{})
	alice := s.dial(t, "user=alice")
	bob := s.dial(t, "user=bob")
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	alice.write(t, types.TypeSendMessage, types.SendMessageRequest{Text: "hello", AuthorName: "Alice"})

	for _, p := range []*wsPeer{alice, bob} {
		msg := nextMessage(t, p)
		assert.Equal(t, int64(1), msg.ID)
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, "Alice", msg.AuthorName)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Messages))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.Clients))
}

func TestHistoryIsReplayedOnJoin(t *testing.T) {
	s := startHub(t, Options{})
	_, err := s.hub.Post("first", "A")
	require.NoError(t, err)
	_, err = s.hub.Post("second", "B")
	require.NoError(t, err)

	p := s.dial(t, "")
	assert.Equal(t, "first", nextMessage(t, p).Text)
	assert.Equal(t, "second", nextMessage(t, p).Text)
}

func TestEmoteExpansion(t *testing.T) {
	s := startHub(t, Options{})
	p := s.dial(t, "")

	p.write(t, types.TypeSendMessage, types.SendMessageRequest{Text: "/tableflip mondays"})
	msg := nextMessage(t, p)
	assert.Equal(t, "mondays (╯°□°）╯︵ ┻━┻", msg.Text)
	assert.Equal(t, models.DefaultAuthorName, msg.AuthorName)
}

func TestReactionToggle(t *testing.T) {
	s := startHub(t, Options{})
	msg, err := s.hub.Post("react to me", "A")
	require.NoError(t, err)

	p := s.dial(t, "user=alice")
	nextMessage(t, p)

	for _, want := range []string{"add", "remove"} {
		p.write(t, types.TypeAddReaction, types.AddReactionRequest{MessageID: msg.ID, Emoji: "👀"})

		env := p.next(t)
		require.Equal(t, types.TypeReactionUpdated, env.Type)
		update, err := types.DecodeReactionUpdate(env)
		require.NoError(t, err)
		assert.Equal(t, msg.ID, update.MessageID)
		assert.Equal(t, "user_alice", update.ReactorID)
		assert.Equal(t, models.ReactionAction(want), update.Action)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Reactions.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Reactions.WithLabelValues("remove")))
}

func TestErrorsGoOnlyToSender(t *testing.T) {
	s := startHub(t, Options{})
	p := s.dial(t, "")

	p.write(t, types.TypeAddReaction, types.AddReactionRequest{MessageID: 404, Emoji: "👍"})
	env := p.next(t)
	require.Equal(t, types.TypeError, env.Type)
	text, err := types.DecodeError(env)
	require.NoError(t, err)
	assert.Equal(t, "Message not found", text)

	require.NoError(t, p.conn.WriteMessage(websocket.TextMessage, []byte("garbage")))
	text, err = types.DecodeError(p.next(t))
	require.NoError(t, err)
	assert.Equal(t, "Invalid message format", text)

	p.write(t, types.TypeSendMessage, types.SendMessageRequest{Text: "   "})
	text, err = types.DecodeError(p.next(t))
	require.NoError(t, err)
	assert.Equal(t, models.ErrEmptyMessage.Error(), text)
}

func TestRateLimit(t *testing.T) {
	s := startHub(t, Options{RateLimitPerMinute: 2})
	p := s.dial(t, "")

	for i := 0; i < 4; i++ {
		p.write(t, types.TypeSendMessage, types.SendMessageRequest{Text: "spam"})
	}

	seen := map[types.MessageType]int{}
	for i := 0; i < 3; i++ {
		seen[p.next(t).Type]++
	}
	assert.Equal(t, 2, seen[types.TypeMessage])
	assert.Equal(t, 1, seen[types.TypeError], "warning is throttled")
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(s.metrics.RateLimited) == 2
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, s.hub.Store().Len())
}

func TestMaxClients(t *testing.T) {
	s := startHub(t, Options{MaxClients: 1})
	s.dial(t, "")

	_, resp, err := websocket.DefaultDialer.Dial(s.url(""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.Rejected))
}

func TestDisconnectUnregisters(t *testing.T) {
	s := startHub(t, Options{})
	p := s.dial(t, "")

	require.NoError(t, p.conn.Close())
	require.Eventually(t, func() bool {
		return s.hub.ClientCount() == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(s.metrics.Clients))
}

func TestStopClosesClients(t *testing.T) {
	s := startHub(t, Options{})
	p := s.dial(t, "")

	s.hub.Stop()

	p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := p.conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)

	_, err = s.hub.Post("late", "A")
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHealth(t *testing.T) {
	s := startHub(t, Options{})
	_, err := s.hub.Post("x", "A")
	require.NoError(t, err)

	resp, err := http.Get(s.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestChatSessionAgainstHub(t *testing.T) {
	s := startHub(t, Options{})
	_, err := s.hub.Post("Welcome to the chat!", "System")
	require.NoError(t, err)

	client := transport.NewClient(nil)
	state := chat.New(client, chat.WithAuthorName("Mickaël"))
	require.NoError(t, state.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx, s.url("user=mickael"), state))
	defer client.Close()

	require.Eventually(t, func() bool { return state.Len() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, state.SendMessage(ctx, "hello"))
	require.Eventually(t, func() bool { return state.Len() == 2 }, 2*time.Second, 5*time.Millisecond)

	msgs := state.OrderedMessages()
	mine := msgs[1]
	assert.Equal(t, "hello", mine.Text)
	assert.Equal(t, "Mickaël", mine.AuthorName)

	require.NoError(t, state.AddReaction(ctx, mine.ID, "👀"))
	require.Eventually(t, func() bool {
		counts, err := state.ReactionCounts(mine.ID)
		return err == nil && len(counts) == 1 && counts[0].Count == 1
	}, 2*time.Second, 5*time.Millisecond)

	got, ok := state.Message(mine.ID)
	require.True(t, ok)
	assert.Equal(t, []string{"user_mickael"}, got.Reactions.Reactors("👀"))
}

func TestLargeHistoryReplayFitsClientFrames(t *testing.T) {
	s := startHub(t, Options{})
	text := strings.Repeat("a", models.MaxTextLength)
	for i := 0; i < 1000; i++ {
		_, err := s.hub.Post(text, "Author")
		require.NoError(t, err)
	}

	// let the loop drain the live broadcasts so only the replay reaches p
	require.Eventually(t, func() bool {
		return len(s.hub.broadcast) == 0
	}, 2*time.Second, 5*time.Millisecond)

	// raw frames stay under the batch cap
	p := s.dial(t, "")
	received := 0
	for received < 1000 {
		p.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, frame, err := p.conn.ReadMessage()
		require.NoError(t, err)
		require.LessOrEqual(t, len(frame), maxBatchBytes)
		received += bytes.Count(frame, []byte{'\n'}) + 1
	}
	assert.Equal(t, 1000, received)

	client := transport.NewClient(nil)
	state := chat.New(client)
	require.NoError(t, state.Start())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx, s.url(""), state))
	defer client.Close()

	require.Eventually(t, func() bool {
		return state.Len() == 1000
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, chat.StatusReady, state.Status())
}

func TestMaxClientsUnderConcurrentDials(t *testing.T) {
	s := startHub(t, Options{MaxClients: 3})

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted []*websocket.Conn
		rejected int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			conn, resp, err := websocket.DefaultDialer.Dial(s.url(""), nil)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if resp != nil && resp.StatusCode == http.StatusServiceUnavailable {
					rejected++
				}
				return
			}
			accepted = append(accepted, conn)
		}()
	}
	wg.Wait()
	t.Cleanup(func() {
		for _, conn := range accepted {
			conn.Close()
		}
	})

	assert.Len(t, accepted, 3)
	assert.Equal(t, 9, rejected)
	require.Eventually(t, func() bool { return s.hub.ClientCount() == 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestReserveSlot(t *testing.T) {
	h := New(NewStore(10), nil, nil, Options{MaxClients: 2})

	assert.True(t, h.reserveSlot())
	assert.True(t, h.reserveSlot())
	assert.False(t, h.reserveSlot(), "reservations count against the cap")

	h.releaseSlot()
	assert.True(t, h.reserveSlot())
}
