package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"PrintRelay/app/models"
	"PrintRelay/app/security"
	"PrintRelay/app/services"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	TypePrintJobUpdate MessageType = "print_job_update"
	TypeHeartbeat      MessageType = "heartbeat"
	TypeAuthResponse   MessageType = "auth_response"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType     `json:"type"`
	ClientID  string          `json:"client_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// JobService is what the hub exposes of the print job history
type JobService interface {
	History(ctx context.Context, storeID string, limit int) ([]models.PrintJob, error)
	Job(ctx context.Context, id string) (*models.PrintJob, error)
	RetryJob(ctx context.Context, id, printerID string) (*models.PrintJob, error)
	RefreshJobs(ctx context.Context, storeID string) (int, error)
}

// RetryRequest is the optional body of a manual retry
type RetryRequest struct {
	PrinterID string `json:"printer_id,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	ID          string
	Connection  *websocket.Conn
	Send        chan []byte
	Server      *Server
	ConnectedAt time.Time
	RemoteAddr  string
	closeOnce   sync.Once
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

// Server pushes print job changes to UI clients and serves job history
type Server struct {
	clients       map[string]*Client
	upgrader      websocket.Upgrader
	mu            sync.RWMutex
	port          string
	accessKeyHash string
	jobs          JobService
	router        *mux.Router
	httpServer    *http.Server
	announce      bool
	mdnsShutdown  chan struct{}
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewServer creates a status hub listening on port (":8090").
// An empty accessKeyHash leaves the hub open to the local network.
func NewServer(port string, jobs JobService, accessKeyHash string) *Server {
	s := &Server{
		clients:       make(map[string]*Client),
		port:          port,
		accessKeyHash: accessKeyHash,
		jobs:          jobs,
		mdnsShutdown:  make(chan struct{}),
		stop:          make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Allow connections from local network
				return true
			},
		},
	}

	router := mux.NewRouter()
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.requireAccessKey(s.handleWebSocket))
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/print-jobs", s.requireAccessKey(s.handleListJobs)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/print-jobs/refresh", s.requireAccessKey(s.handleRefreshJobs)).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/print-jobs/{id}", s.requireAccessKey(s.handleGetJob)).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/print-jobs/{id}/retry", s.requireAccessKey(s.handleRetryJob)).Methods(http.MethodPost, http.MethodOptions)
	s.router = router

	return s
}

// EnableMDNS announces the hub on the local network when it starts
func (s *Server) EnableMDNS(enabled bool) {
	s.announce = enabled
}

// Handler returns the hub's HTTP routes
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the hub until Stop is called. A stopped hub cannot be restarted.
func (s *Server) Start() error {
	select {
	case <-s.stop:
		return errors.New("status hub already stopped")
	default:
	}

	go s.run()

	if s.announce {
		go s.startMDNS()
	}

	s.mu.Lock()
	s.httpServer = &http.Server{
		Addr:              s.port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	log.Printf("Status hub starting on port %s", s.port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startMDNS announces the hub via mDNS/Zeroconf
func (s *Server) startMDNS() {
	portStr := strings.TrimPrefix(s.port, ":")
	if idx := strings.LastIndex(portStr, ":"); idx >= 0 {
		portStr = portStr[idx+1:]
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Printf("mDNS: Invalid port format %s: %v", s.port, err)
		return
	}

	server, err := zeroconf.Register(
		"Print Relay",
		"_printrelay._tcp",
		"local.",
		port,
		[]string{"version=1.0", "path=/ws"},
		nil,
	)
	if err != nil {
		log.Printf("mDNS: Failed to register service: %v", err)
		return
	}
	log.Println("mDNS: Print relay announced on _printrelay._tcp.local")

	<-s.mdnsShutdown
	server.Shutdown()
	log.Println("mDNS: Service announcement stopped")
}

// Stop shuts the HTTP server down and disconnects all clients
func (s *Server) Stop(ctx context.Context) error {
	var err error
	s.stopOnce.Do(func() {
		close(s.mdnsShutdown)
		close(s.stop)

		s.mu.Lock()
		srv := s.httpServer
		for id, client := range s.clients {
			client.closeSend()
			client.Connection.Close()
			delete(s.clients, id)
		}
		s.mu.Unlock()

		if srv != nil {
			err = srv.Shutdown(ctx)
		}
	})
	return err
}

// run sends heartbeats until the hub stops
func (s *Server) run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.broadcastToAll(&Message{
				Type:      TypeHeartbeat,
				Timestamp: time.Now(),
				Data:      json.RawMessage(`{"ping":"pong"}`),
			})
		case <-s.stop:
			return
		}
	}
}

// PrintJobChanged broadcasts a persisted job change to every client
func (s *Server) PrintJobChanged(job models.PrintJob) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Printf("Error marshaling print job %s: %v", job.ID, err)
		return
	}

	s.broadcastToAll(&Message{
		Type:      TypePrintJobUpdate,
		Timestamp: time.Now(),
		Data:      data,
	})
}

func (s *Server) register(client *Client) {
	s.mu.Lock()
	s.clients[client.ID] = client
	s.mu.Unlock()

	log.Printf("Client registered: %s (%s)", client.ID, client.RemoteAddr)
	s.sendAuthResponse(client, true, "Connected successfully")
}

func (s *Server) unregister(client *Client) {
	s.mu.Lock()
	_, ok := s.clients[client.ID]
	delete(s.clients, client.ID)
	s.mu.Unlock()

	if ok {
		client.closeSend()
		log.Printf("Client unregistered: %s", client.ID)
	}
}

// broadcastToAll queues a message for every client, dropping clients whose buffer is full
func (s *Server) broadcastToAll(message *Message) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, client := range s.clients {
		select {
		case client.Send <- data:
		default:
			log.Printf("Client %s is not keeping up, disconnecting", id)
			delete(s.clients, id)
			client.closeSend()
		}
	}
}

func (s *Server) sendAuthResponse(client *Client, success bool, message string) {
	data, _ := json.Marshal(map[string]interface{}{
		"success":   success,
		"message":   message,
		"client_id": client.ID,
	})

	client.sendMessage(Message{
		Type:      TypeAuthResponse,
		Timestamp: time.Now(),
		Data:      data,
	})
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// GetPort returns the server port
func (s *Server) GetPort() string {
	return s.port
}

// HTTP handlers

// requireAccessKey rejects requests whose access key does not match the configured hash.
// The key is read from the X-Access-Key header or the "key" query parameter.
func (s *Server) requireAccessKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		key := r.Header.Get("X-Access-Key")
		if key == "" {
			key = r.URL.Query().Get("key")
		}
		if !security.CheckAccessKey(s.accessKeyHash, key) {
			writeError(w, http.StatusUnauthorized, "invalid access key")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	client := &Client{
		ID:          generateClientID(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		Server:      s,
		ConnectedAt: time.Now(),
		RemoteAddr:  r.RemoteAddr,
	}
	s.register(client)

	go client.writePump()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"clients": s.ClientCount(),
		"time":    time.Now(),
	})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	jobs, err := s.jobs.History(r.Context(), r.URL.Query().Get("store_id"), limit)
	if err != nil {
		log.Printf("Error fetching print jobs: %v", err)
		writeError(w, http.StatusInternalServerError, "error fetching print jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	job, err := s.jobs.Job(r.Context(), id)
	if errors.Is(err, models.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, "print job not found")
		return
	}
	if err != nil {
		log.Printf("Error fetching print job %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "error fetching print job")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// handleRetryJob manually resends a job in error, optionally to another printer
func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req RetryRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	job, err := s.jobs.RetryJob(r.Context(), id, req.PrinterID)
	var relayErr *services.RelayError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, job)
	case errors.Is(err, models.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "print job not found")
	case errors.Is(err, services.ErrJobNotRetryable):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &relayErr):
		writeJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error": relayErr.Error(),
			"job":   job,
		})
	default:
		log.Printf("Error retrying print job %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "error retrying print job")
	}
}

// handleRefreshJobs reconciles sent jobs now instead of waiting for the worker
func (s *Server) handleRefreshJobs(w http.ResponseWriter, r *http.Request) {
	changed, err := s.jobs.RefreshJobs(r.Context(), r.URL.Query().Get("store_id"))
	if err != nil {
		log.Printf("Error refreshing print jobs: %v", err)
		writeError(w, http.StatusInternalServerError, "error refreshing print jobs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"changed": changed,
	})
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Access-Key")
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// Client methods

// readPump drains the connection, answering heartbeats, until the client goes away
func (c *Client) readPump() {
	defer func() {
		c.Server.unregister(c)
		c.Connection.Close()
	}()

	c.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.Connection.SetPongHandler(func(string) error {
		c.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := c.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		var message Message
		if err := json.Unmarshal(messageBytes, &message); err != nil {
			log.Printf("Error parsing message: %v", err)
			continue
		}

		if message.Type == TypeHeartbeat {
			c.sendMessage(Message{
				Type:      TypeHeartbeat,
				Timestamp: time.Now(),
				Data:      json.RawMessage(`{"status":"alive"}`),
			})
		}
	}
}

// writePump handles writing messages to the client
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// sendMessage queues a message for the client without blocking
func (c *Client) sendMessage(message Message) (err error) {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	// Send may already be closed by a concurrent unregister
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("client %s is closed", c.ID)
		}
	}()

	select {
	case c.Send <- data:
		return nil
	default:
		return fmt.Errorf("client send channel is full")
	}
}

func generateClientID() string {
	return fmt.Sprintf("%d-%d", time.Now().Unix(), time.Now().Nanosecond())
}
