package httpx

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"toolmart/internal/domain"
	"toolmart/internal/repository"
	"toolmart/internal/service/auth"
	"toolmart/internal/service/catalog"
	"toolmart/internal/service/order"
	"toolmart/internal/service/payment"
	"toolmart/internal/service/review"
	"toolmart/internal/service/user"
	"toolmart/internal/ws"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	users    user.Service
	catalog  catalog.Service
	reviews  review.Service
	orders   order.Service
	payments payment.Service
	upgrader   websocket.Upgrader
	limiter    RateLimiter
	feedBuffer int
	dbHealth   func(context.Context) error

	metricsOnce        sync.Once
	metricsInitialized bool
	requestTotal       *prometheus.CounterVec
	requestLatency     *prometheus.HistogramVec
	rateLimitHits      *prometheus.CounterVec
}

const (
	rateWindowDefault      = time.Minute
	rateWindowRealtime     = 30 * time.Second
	rateLimitPublicRead    = 240
	rateLimitPublicWrite   = 60
	rateLimitUserRead      = 120
	rateLimitUserWrite     = 60
	rateLimitAdmin         = 60
	rateLimitPaymentIntent = 30
	rateLimitWebsocket     = 30
	healthCheckTimeout     = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, userSvc user.Service, catalogSvc catalog.Service, reviewSvc review.Service, orderSvc order.Service, paymentSvc payment.Service, limiter RateLimiter, feedBuffer int, dbHealth func(context.Context) error) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		users:    userSvc,
		catalog:  catalogSvc,
		reviews:  reviewSvc,
		orders:   orderSvc,
		payments: paymentSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:    limiter,
		feedBuffer: feedBuffer,
		dbHealth:   dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.initMetrics()
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.Handle("/metrics", promhttp.Handler())
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.HandleFunc("/users", r.audit("/users", r.handlerAdminRate("/users", rateLimitAdmin, rateWindowDefault, r.handleListUsers)))
	r.mux.HandleFunc("/user/", r.audit("/user/", r.handleUserSubroutes))
	r.mux.HandleFunc("/admin/", r.audit("/admin/", r.withRateLimit("/admin/", rateLimitPublicRead, rateWindowDefault, rateLimitKeyIP, r.handleAdminFlag)))
	r.mux.HandleFunc("/tools", r.audit("/tools", r.handleTools))
	r.mux.HandleFunc("/tools/", r.audit("/tools/", r.handleToolSubroutes))
	r.mux.HandleFunc("/tool/", r.audit("/tool/", r.withRateLimit("/tool/", rateLimitPublicWrite, rateWindowDefault, rateLimitKeyIP, r.handleToolDelete)))
	r.mux.HandleFunc("/reviews", r.audit("/reviews", r.withRateLimit("/reviews", rateLimitPublicRead, rateWindowDefault, rateLimitKeyIP, r.handleListReviews)))
	r.mux.HandleFunc("/review", r.audit("/review", r.withRateLimit("/review", rateLimitPublicWrite, rateWindowDefault, rateLimitKeyIP, r.handleCreateReview)))
	r.mux.HandleFunc("/orders", r.audit("/orders", r.handleOrders))
	r.mux.HandleFunc("/orders/", r.audit("/orders/", r.handleOrderByID))
	r.mux.HandleFunc("/order", r.audit("/order", r.handlerAuthRate("/order", rateLimitUserRead, rateWindowDefault, r.handleOrdersByBuyer)))
	r.mux.HandleFunc("/order/", r.audit("/order/", r.handlerAuthRate("/order/", rateLimitUserWrite, rateWindowDefault, r.handleOrderFulfillment)))
	r.mux.HandleFunc("/create-payment-intent", r.audit("/create-payment-intent", r.handlerAuthRate("/create-payment-intent", rateLimitPaymentIntent, rateWindowDefault, r.handleCreatePaymentIntent)))
	r.mux.HandleFunc("/ws/orders", r.audit("/ws/orders", r.requireAdmin(r.withRateLimit("/ws/orders", rateLimitWebsocket, rateWindowRealtime, rateLimitKeyUser, r.handleOrdersWS))))
	r.mux.HandleFunc("/", r.audit("/", r.handleRoot))
}

// decodeFields reads a request body as a schemaless document. An empty body
// is an empty document; payload shape is otherwise not validated.
func decodeFields(req *http.Request) (map[string]any, error) {
	fields := make(map[string]any)
	if err := json.NewDecoder(req.Body).Decode(&fields); err != nil {
		if errors.Is(err, io.EOF) {
			return fields, nil
		}
		return nil, err
	}
	return fields, nil
}

// writeRepoError maps storage failures onto the response, propagating the
// message with minimal translation.
func (r *Router) writeRepoError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		r.notFound(w)
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		r.notFound(w)
		return
	}
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Manufacturer company is ready to supply tools"))
}

func (r *Router) handleListUsers(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	users, err := r.users.List(req.Context())
	if err != nil {
		r.writeRepoError(w, err)
		return
	}
	if users == nil {
		users = []domain.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (r *Router) handleUserSubroutes(w http.ResponseWriter, req *http.Request) {
	trimmed := strings.TrimPrefix(req.URL.Path, "/user/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 2 && parts[0] == "admin" && parts[1] != "" {
		email := parts[1]
		r.handlerAdminRate("/user/admin/", rateLimitAdmin, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
			r.handlePromoteUser(w, req, email)
		})(w, req)
		return
	}
	if len(parts) == 1 && parts[0] != "" {
		email := parts[0]
		r.withRateLimit("/user/", rateLimitPublicWrite, rateWindowDefault, rateLimitKeyIP, func(w http.ResponseWriter, req *http.Request) {
			r.handleUpsertUser(w, req, email)
		})(w, req)
		return
	}
	r.notFound(w)
}

func (r *Router) handleUpsertUser(w http.ResponseWriter, req *http.Request, email string) {
	if req.Method != http.MethodPut {
		r.methodNotAllowed(w)
		return
	}
	fields, err := decodeFields(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, token, err := r.users.Upsert(req.Context(), email, fields)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result": result,
		"token":  token,
	})
}

func (r *Router) handlePromoteUser(w http.ResponseWriter, req *http.Request, email string) {
	if req.Method != http.MethodPut {
		r.methodNotAllowed(w)
		return
	}
	result, err := r.users.Promote(req.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (r *Router) handleAdminFlag(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	email := strings.TrimPrefix(req.URL.Path, "/admin/")
	if email == "" || strings.Contains(email, "/") {
		r.notFound(w)
		return
	}
	isAdmin, err := r.users.IsAdmin(req.Context(), email)
	if err != nil {
		r.writeRepoError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"admin": isAdmin})
}

func (r *Router) handleTools(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.withRateLimit("/tools", rateLimitPublicRead, rateWindowDefault, rateLimitKeyIP, r.handleListTools)(w, req)
	case http.MethodPost:
		r.withRateLimit("/tools", rateLimitPublicWrite, rateWindowDefault, rateLimitKeyIP, r.handleCreateTool)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleListTools(w http.ResponseWriter, req *http.Request) {
	tools, err := r.catalog.List(req.Context())
	if err != nil {
		r.writeRepoError(w, err)
		return
	}
	if tools == nil {
		tools = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, tools)
}

func (r *Router) handleCreateTool(w http.ResponseWriter, req *http.Request) {
	fields, err := decodeFields(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := r.catalog.Create(req.Context(), fields)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"acknowledged": true,
		"insertedId":   id,
	})
}

func (r *Router) handleToolSubroutes(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimPrefix(req.URL.Path, "/tools/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodGet:
		r.withRateLimit("/tools/", rateLimitPublicRead, rateWindowDefault, rateLimitKeyIP, func(w http.ResponseWriter, req *http.Request) {
			tool, err := r.catalog.Get(req.Context(), id)
			if err != nil {
				r.writeRepoError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, tool)
		})(w, req)
	case http.MethodPut:
		r.withRateLimit("/tools/", rateLimitPublicWrite, rateWindowDefault, rateLimitKeyIP, func(w http.ResponseWriter, req *http.Request) {
			fields, err := decodeFields(req)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid JSON body")
				return
			}
			result, err := r.catalog.Update(req.Context(), id, fields)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, result)
		})(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleToolDelete(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodDelete {
		r.methodNotAllowed(w)
		return
	}
	id := strings.TrimPrefix(req.URL.Path, "/tool/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	count, err := r.catalog.Delete(req.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"acknowledged": true,
		"deletedCount": count,
	})
}

func (r *Router) handleListReviews(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	reviews, err := r.reviews.List(req.Context())
	if err != nil {
		r.writeRepoError(w, err)
		return
	}
	if reviews == nil {
		reviews = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (r *Router) handleCreateReview(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	fields, err := decodeFields(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := r.reviews.Create(req.Context(), fields)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"acknowledged": true,
		"insertedId":   id,
	})
}

func (r *Router) handleOrders(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		// listing all orders requires a verified identity
		r.handlerAuthRate("/orders", rateLimitUserRead, rateWindowDefault, r.handleListOrders)(w, req)
	case http.MethodPost:
		r.withRateLimit("/orders", rateLimitPublicWrite, rateWindowDefault, rateLimitKeyIP, r.handleCreateOrder)(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleListOrders(w http.ResponseWriter, req *http.Request) {
	orders, err := r.orders.List(req.Context())
	if err != nil {
		r.writeRepoError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (r *Router) handleCreateOrder(w http.ResponseWriter, req *http.Request) {
	fields, err := decodeFields(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	id, err := r.orders.Create(req.Context(), fields)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"acknowledged": true,
		"insertedId":   id,
	})
}

func (r *Router) handleOrderByID(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimPrefix(req.URL.Path, "/orders/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodGet:
		r.handlerAuthRate("/orders/", rateLimitUserRead, rateWindowDefault, func(w http.ResponseWriter, req *http.Request) {
			ord, err := r.orders.Get(req.Context(), id)
			if err != nil {
				r.writeRepoError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, ord)
		})(w, req)
	case http.MethodDelete:
		r.withRateLimit("/orders/", rateLimitPublicWrite, rateWindowDefault, rateLimitKeyIP, func(w http.ResponseWriter, req *http.Request) {
			count, err := r.orders.Delete(req.Context(), id)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"acknowledged": true,
				"deletedCount": count,
			})
		})(w, req)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleOrdersByBuyer(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for buyer listing", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "authorization context missing")
		return
	}
	buyer := req.URL.Query().Get("buyer")
	if buyer != info.Email {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}
	orders, err := r.orders.ListByBuyer(req.Context(), buyer)
	if err != nil {
		r.writeRepoError(w, err)
		return
	}
	if orders == nil {
		orders = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (r *Router) handleOrderFulfillment(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimPrefix(req.URL.Path, "/order/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	fields, err := decodeFields(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	switch req.Method {
	case http.MethodPatch:
		result, err := r.orders.ConfirmPayment(req.Context(), id, fields)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	case http.MethodPut:
		result, err := r.orders.RecordShipment(req.Context(), id, fields)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleCreatePaymentIntent(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Price    float64 `json:"price"`
		Quantity float64 `json:"quantity"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	secret, err := r.payments.CreateIntent(req.Context(), payload.Price, payload.Quantity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"clientSecret": secret})
}

func (r *Router) handleOrdersWS(w http.ResponseWriter, req *http.Request) {
	hub := r.orders.Hub()
	if hub == nil {
		writeError(w, http.StatusServiceUnavailable, "order feed unavailable")
		return
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := ws.NewClient(conn, r.logger, r.feedBuffer)
	hub.Register(order.FeedTopic, client)
	go func() {
		defer func() {
			hub.Unregister(order.FeedTopic, client)
			client.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		r.recordRequestMetrics(req.Method, route, status, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "email", info.Email)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
	ctx    context.Context
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := sr.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, errors.New("hijacker not supported")
}

func (sr *statusRecorder) Push(target string, opts *http.PushOptions) error {
	if p, ok := sr.ResponseWriter.(http.Pusher); ok {
		return p.Push(target, opts)
	}
	return http.ErrNotSupported
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.windowEnd.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.windowEnd.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}
