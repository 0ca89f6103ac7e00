package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abrezinsky/autobid/internal/bidding"
	"github.com/abrezinsky/autobid/internal/logger"
	"github.com/abrezinsky/autobid/internal/models"
	"github.com/abrezinsky/autobid/internal/services"
)

// mockRunStatus implements StatusProvider for testing
type mockRunStatus struct {
	mu     sync.Mutex
	status services.Status
	err    error
	calls  int
}

func newMockRunStatus() *mockRunStatus {
	return &mockRunStatus{status: services.Status{Results: []models.CourseResult{}}}
}

func (m *mockRunStatus) Status(ctx context.Context) (*services.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := m.status
	return &out, nil
}

func (m *mockRunStatus) schedule(next time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.Schedule = &services.Schedule{Spec: "0 9 * * *", Next: next}
}

func readMessage(t *testing.T, ws *websocket.Conn) models.WSMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg models.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	return msg
}

func TestNew_CreatesHubWithDependencies(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()

	hub := New(log, runs)

	if hub == nil {
		t.Fatal("expected hub to be created")
	}
	if hub.log == nil {
		t.Error("expected logger to be set")
	}
	if hub.runs == nil {
		t.Error("expected status provider to be set")
	}
	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}
	if hub.broadcast == nil {
		t.Error("expected broadcast channel to be initialized")
	}
	if hub.register == nil {
		t.Error("expected register channel to be initialized")
	}
	if hub.unregister == nil {
		t.Error("expected unregister channel to be initialized")
	}
}

func TestHub_BroadcastMessage(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	// Give hub time to start
	time.Sleep(10 * time.Millisecond)

	// BroadcastMessage should not block even with no clients
	done := make(chan bool)
	go func() {
		hub.BroadcastMessage("test", map[string]string{"key": "value"})
		done <- true
	}()

	select {
	case <-done:
		// Success - didn't block
	case <-time.After(100 * time.Millisecond):
		t.Error("BroadcastMessage blocked with no clients")
	}
}

func TestHub_BroadcastRunStatus_DoesNotBlock(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	time.Sleep(10 * time.Millisecond)

	done := make(chan bool)
	go func() {
		hub.BroadcastRunStatus(&services.Status{Running: true})
		hub.BroadcastRunEvent("run-1", bidding.Event{Type: bidding.EventCourseStarted, Course: "CSC1001"})
		done <- true
	}()

	select {
	case <-done:
		// Success
	case <-time.After(100 * time.Millisecond):
		t.Error("run broadcasts blocked")
	}
}

func TestHub_StartCountdown_ContextCancellation(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan bool)
	stopped := make(chan bool)

	go func() {
		started <- true
		hub.StartCountdown(ctx)
		stopped <- true
	}()

	// Wait for countdown to start
	<-started
	time.Sleep(50 * time.Millisecond)

	// Cancel should stop the countdown
	cancel()

	select {
	case <-stopped:
		// Success - countdown stopped when context cancelled
	case <-time.After(500 * time.Millisecond):
		t.Error("countdown did not stop when context was cancelled")
	}
}

func TestHub_Start_RunsInBackground(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)

	// Start should return immediately (runs in goroutine)
	done := make(chan bool)
	go func() {
		hub.Start()
		done <- true
	}()

	select {
	case <-done:
		// Success - Start returned immediately
	case <-time.After(100 * time.Millisecond):
		t.Error("Start() blocked instead of running in background")
	}
}

func TestHub_ClientRegistration(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	time.Sleep(10 * time.Millisecond)

	// Create a mock client
	client := &Client{
		hub:  hub,
		send: make(chan models.WSMessage, 256),
	}

	// Register client
	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	// Verify client was registered
	hub.mutex.RLock()
	_, exists := hub.clients[client]
	hub.mutex.RUnlock()

	if !exists {
		t.Error("expected client to be registered")
	}
}

func TestHub_ClientUnregistration(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	time.Sleep(10 * time.Millisecond)

	// Create and register a mock client
	client := &Client{
		hub:  hub,
		send: make(chan models.WSMessage, 256),
	}

	hub.register <- client
	time.Sleep(50 * time.Millisecond)

	// Unregister client
	hub.unregister <- client
	time.Sleep(50 * time.Millisecond)

	// Verify client was unregistered
	hub.mutex.RLock()
	_, exists := hub.clients[client]
	hub.mutex.RUnlock()

	if exists {
		t.Error("expected client to be unregistered")
	}
}

// ==================== WebSocket Integration Tests ====================

func TestServeWs_ClientConnection(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	// Create test HTTP server
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	// Convert http://... to ws://...
	url := "ws" + server.URL[4:]

	// Connect WebSocket client
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	// Give server time to register client
	time.Sleep(100 * time.Millisecond)

	// Verify client was registered
	hub.mutex.RLock()
	clientCount := len(hub.clients)
	hub.mutex.RUnlock()

	if clientCount != 1 {
		t.Errorf("expected 1 client, got %d", clientCount)
	}
}

func TestServeWs_BroadcastToClient(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:]
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	// Give server time to register client
	time.Sleep(100 * time.Millisecond)

	// Read and discard the initial run_status message
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = ws.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read initial run_status: %v", err)
	}

	// Broadcast a message
	hub.BroadcastMessage("test_event", map[string]string{
		"key": "value",
	})

	// Read the broadcasted message from WebSocket
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}

	// Verify message content
	var msg models.WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}

	if msg.Type != "test_event" {
		t.Errorf("expected type 'test_event', got %s", msg.Type)
	}
}

func TestServeWs_ClientDisconnect(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:]
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	// Give server time to register client
	time.Sleep(100 * time.Millisecond)

	// Close connection
	ws.Close()

	// Give server time to unregister client
	time.Sleep(200 * time.Millisecond)

	// Verify client was unregistered
	hub.mutex.RLock()
	clientCount := len(hub.clients)
	hub.mutex.RUnlock()

	if clientCount != 0 {
		t.Errorf("expected 0 clients after disconnect, got %d", clientCount)
	}
}

func TestServeWs_MultipleClients(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:]

	// Connect 3 clients
	ws1, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect client 1: %v", err)
	}
	defer ws1.Close()

	ws2, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect client 2: %v", err)
	}
	defer ws2.Close()

	ws3, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect client 3: %v", err)
	}
	defer ws3.Close()

	// Give server time to register all clients
	time.Sleep(200 * time.Millisecond)

	// Discard initial run_status messages from all clients
	for i, ws := range []*websocket.Conn{ws1, ws2, ws3} {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, _, err := ws.ReadMessage()
		if err != nil {
			t.Errorf("client %d failed to read initial run_status: %v", i+1, err)
		}
	}

	// Verify 3 clients registered
	hub.mutex.RLock()
	clientCount := len(hub.clients)
	hub.mutex.RUnlock()

	if clientCount != 3 {
		t.Errorf("expected 3 clients, got %d", clientCount)
	}

	// Broadcast message
	hub.BroadcastMessage("broadcast_test", map[string]int{"count": 123})

	// All clients should receive the message
	for i, ws := range []*websocket.Conn{ws1, ws2, ws3} {
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, message, err := ws.ReadMessage()
		if err != nil {
			t.Errorf("client %d failed to read message: %v", i+1, err)
			continue
		}

		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			t.Errorf("client %d failed to unmarshal: %v", i+1, err)
			continue
		}

		if msg.Type != "broadcast_test" {
			t.Errorf("client %d got wrong type: %s", i+1, msg.Type)
		}
	}
}

func TestReadPump_IncomingMessage(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:]
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	time.Sleep(100 * time.Millisecond)

	// Send a message from client
	testMsg := models.WSMessage{
		Type:    "client_message",
		Payload: map[string]string{"data": "test"},
	}
	msgBytes, _ := json.Marshal(testMsg)

	if err := ws.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
		t.Fatalf("failed to write message: %v", err)
	}

	// Give server time to process
	time.Sleep(100 * time.Millisecond)

	// readPump should have logged the message (we can't directly verify but exercise the code)
}

func TestWritePump_PingPong(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:]
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	// Set up pong handler to track pings
	pongReceived := make(chan bool, 1)
	ws.SetPongHandler(func(string) error {
		select {
		case pongReceived <- true:
		default:
		}
		return nil
	})

	// Start reading to process pongs
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Wait for a ping (writePump sends ping every 54 seconds, but we can't wait that long)
	// Just verify the connection stays alive for a reasonable time
	time.Sleep(200 * time.Millisecond)

	// Connection should still be alive
	if err := ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second)); err != nil {
		t.Errorf("connection closed unexpectedly: %v", err)
	}
}

func TestServeWs_UpgradeError(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	// Create a request without upgrade headers - should fail
	req := httptest.NewRequest("GET", "/ws", nil)
	w := httptest.NewRecorder()

	hub.ServeWs(w, req)

	// Should have logged error and returned (we can't verify logging, but exercise the code)
	// The upgrade will fail because request doesn't have proper WS headers
}

func TestReadPump_MessageProcessing(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:]
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	time.Sleep(100 * time.Millisecond)

	// Read and discard the initial run_status message
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	ws.ReadMessage()

	// Send a valid JSON message that will be unmarshaled successfully
	testMsg := models.WSMessage{
		Type:    "test_message",
		Payload: map[string]string{"key": "value"},
	}
	msgBytes, _ := json.Marshal(testMsg)

	if err := ws.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
		t.Fatalf("failed to write message: %v", err)
	}

	// Give server time to process the message
	time.Sleep(100 * time.Millisecond)

	// The readPump should have processed the message and logged it
	// (we can't verify the log, but this exercises the code path)
}

func TestWritePump_ChannelClosed(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:]
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	time.Sleep(100 * time.Millisecond)

	// Read initial message
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	ws.ReadMessage()

	// Set up close handler to detect when server sends close message
	closeReceived := make(chan bool, 1)
	ws.SetCloseHandler(func(code int, text string) error {
		closeReceived <- true
		return nil
	})

	// Start reading to process close message
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Find the client and close its send channel by unregistering it
	hub.mutex.RLock()
	var client *Client
	for c := range hub.clients {
		client = c
		break
	}
	hub.mutex.RUnlock()

	if client == nil {
		t.Fatal("no client found")
	}

	// Unregister the client - this will close the send channel
	// which should trigger writePump to send a close message
	hub.unregister <- client

	// Wait for close message to be received
	select {
	case <-closeReceived:
		// Success - close message was sent
	case <-time.After(500 * time.Millisecond):
		t.Error("expected to receive close message from server")
	}
}

func TestReadPump_PongHandler(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:]
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	time.Sleep(100 * time.Millisecond)

	// Read initial message
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	ws.ReadMessage()

	// Send a pong message from client to server
	// This will trigger the server's SetPongHandler which updates the read deadline
	if err := ws.WriteControl(websocket.PongMessage, []byte("pong"), time.Now().Add(time.Second)); err != nil {
		t.Fatalf("failed to send pong: %v", err)
	}

	// Give server time to process pong
	time.Sleep(100 * time.Millisecond)

	// Server's pong handler should have been triggered and updated the read deadline
	// We can't directly verify this, but the code path has been exercised
	if err := ws.WriteMessage(websocket.TextMessage, []byte("test")); err != nil {
		t.Errorf("connection should still be alive after pong: %v", err)
	}
}

func TestWritePump_WriteError(t *testing.T) {
	log := logger.Nop()
	runs := newMockRunStatus()
	hub := New(log, runs)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	url := "ws" + server.URL[4:]
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	// Read and discard initial message
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	ws.ReadMessage()

	// Close connection from client side
	ws.Close()
	time.Sleep(50 * time.Millisecond)

	// Try to broadcast a message - server will attempt to write to closed connection
	// This should trigger the writer error paths
	hub.BroadcastMessage("test", map[string]string{"key": "value"})

	// Give server time to detect write error and clean up
	time.Sleep(200 * time.Millisecond)

	// Verify client was cleaned up after write error
	hub.mutex.RLock()
	clientCount := len(hub.clients)
	hub.mutex.RUnlock()

	if clientCount != 0 {
		t.Errorf("expected 0 clients after write error, got %d", clientCount)
	}
}


func TestServeWs_InitialRunStatus(t *testing.T) {
	runs := newMockRunStatus()
	runs.status.Running = true
	runs.status.Run = &models.Run{ID: "run-1", Status: models.RunRunning}
	hub := New(logger.Nop(), runs)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:], nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	msg := readMessage(t, ws)
	if msg.Type != TypeRunStatus {
		t.Fatalf("expected %s, got %s", TypeRunStatus, msg.Type)
	}
	payload, ok := msg.Payload.(map[string]interface{})
	if !ok || payload["running"] != true {
		t.Errorf("unexpected payload %v", msg.Payload)
	}
}

func TestServeWs_RunEventReachesClient(t *testing.T) {
	hub := New(logger.Nop(), newMockRunStatus())
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:], nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()
	readMessage(t, ws)

	outcome := models.Outcome{Kind: models.OutcomeScheduleClash, CourseCode: "CSC1001", Message: "Time clashed"}
	hub.BroadcastRunEvent("run-1", bidding.Event{
		Type:    bidding.EventAttemptFinished,
		Pass:    1,
		Course:  "CSC1001",
		Attempt: 2,
		State:   models.StateSatisfied,
		Outcome: &outcome,
	})

	msg := readMessage(t, ws)
	if msg.Type != TypeRunEvent {
		t.Fatalf("expected %s, got %s", TypeRunEvent, msg.Type)
	}
	payload := msg.Payload.(map[string]interface{})
	if payload["run_id"] != "run-1" {
		t.Errorf("unexpected run id %v", payload["run_id"])
	}
	event := payload["event"].(map[string]interface{})
	if event["type"] != "attempt_finished" || event["course"] != "CSC1001" {
		t.Errorf("unexpected event %v", event)
	}
}

func TestServeWs_NoInitialStatusOnError(t *testing.T) {
	runs := newMockRunStatus()
	runs.err = errors.New("database error")
	hub := New(logger.Nop(), runs)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:], nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()
	time.Sleep(100 * time.Millisecond)

	hub.BroadcastMessage("test_event", nil)
	if msg := readMessage(t, ws); msg.Type != "test_event" {
		t.Errorf("expected broadcast to be the first message, got %s", msg.Type)
	}
}

func TestCheckAndUpdateCountdown_SendsCountdown(t *testing.T) {
	runs := newMockRunStatus()
	runs.schedule(time.Now().Add(90 * time.Second))
	hub := New(logger.Nop(), runs)
	hub.Start()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWs))
	defer server.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:], nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()
	readMessage(t, ws)

	hub.checkAndUpdateCountdown()

	msg := readMessage(t, ws)
	if msg.Type != TypeCountdown {
		t.Fatalf("expected %s, got %s", TypeCountdown, msg.Type)
	}
	payload := msg.Payload.(map[string]interface{})
	remaining, _ := payload["remaining_seconds"].(float64)
	if remaining < 80 || remaining > 90 {
		t.Errorf("unexpected remaining seconds %v", payload["remaining_seconds"])
	}
	if payload["spec"] != "0 9 * * *" {
		t.Errorf("unexpected spec %v", payload["spec"])
	}
}

func TestCheckAndUpdateCountdown_SkipsWithoutSchedule(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *mockRunStatus)
	}{
		{"no schedule", func(m *mockRunStatus) {}},
		{"run active", func(m *mockRunStatus) {
			m.schedule(time.Now().Add(time.Minute))
			m.status.Running = true
		}},
		{"status error", func(m *mockRunStatus) { m.err = errors.New("database error") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs := newMockRunStatus()
			tt.setup(runs)
			hub := New(logger.Nop(), runs)

			// The hub loop is not started, so any broadcast would block
			done := make(chan bool)
			go func() {
				hub.checkAndUpdateCountdown()
				done <- true
			}()

			select {
			case <-done:
			case <-time.After(500 * time.Millisecond):
				t.Error("expected no countdown broadcast")
			}
		})
	}
}
