package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"smart-shopping-list/internal/shopping"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	gatewayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shoplist",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Total number of remote data gateway calls.",
		},
		[]string{"operation", "status"},
	)

	gatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shoplist",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Duration of remote data gateway calls.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"operation"},
	)

	suggestions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shoplist",
			Subsystem: "suggestions",
			Name:      "requests_total",
			Help:      "Total number of product suggestion requests by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shoplist",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shoplist",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		gatewayCalls,
		gatewayDuration,
		suggestions,
		httpRequests,
		httpDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveSuggestion counts a suggestion request by outcome.
func ObserveSuggestion(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	suggestions.WithLabelValues(outcome).Inc()
}

// InstrumentHandler records request counts and durations labelled by the
// matched chi route pattern.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrumentedGateway counts and times every call of the wrapped gateway.
type instrumentedGateway struct {
	next shopping.Gateway
}

// InstrumentGateway wraps gw with Prometheus call metrics.
func InstrumentGateway(gw shopping.Gateway) shopping.Gateway {
	return &instrumentedGateway{next: gw}
}

func observe(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	gatewayCalls.WithLabelValues(operation, status).Inc()
	gatewayDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (g *instrumentedGateway) ListProducts(ctx context.Context, ownerID string) ([]shopping.Product, error) {
	start := time.Now()
	products, err := g.next.ListProducts(ctx, ownerID)
	observe("list_products", start, err)
	return products, err
}

func (g *instrumentedGateway) CreateProduct(ctx context.Context, ownerID string, in shopping.ProductInput) (*shopping.Product, error) {
	start := time.Now()
	p, err := g.next.CreateProduct(ctx, ownerID, in)
	observe("create_product", start, err)
	return p, err
}

func (g *instrumentedGateway) UpdateProduct(ctx context.Context, ownerID string, p shopping.Product) (*shopping.Product, error) {
	start := time.Now()
	updated, err := g.next.UpdateProduct(ctx, ownerID, p)
	observe("update_product", start, err)
	return updated, err
}

func (g *instrumentedGateway) DeleteProduct(ctx context.Context, ownerID, productID string) error {
	start := time.Now()
	err := g.next.DeleteProduct(ctx, ownerID, productID)
	observe("delete_product", start, err)
	return err
}

func (g *instrumentedGateway) ListShoppingLists(ctx context.Context, ownerID string) ([]shopping.ShoppingList, error) {
	start := time.Now()
	lists, err := g.next.ListShoppingLists(ctx, ownerID)
	observe("list_shopping_lists", start, err)
	return lists, err
}

func (g *instrumentedGateway) CreateShoppingList(ctx context.Context, ownerID, name string, items []shopping.Item) (*shopping.ShoppingList, error) {
	start := time.Now()
	l, err := g.next.CreateShoppingList(ctx, ownerID, name, items)
	observe("create_shopping_list", start, err)
	return l, err
}

func (g *instrumentedGateway) UpdateShoppingList(ctx context.Context, ownerID string, l shopping.ShoppingList) (*shopping.ShoppingList, error) {
	start := time.Now()
	updated, err := g.next.UpdateShoppingList(ctx, ownerID, l)
	observe("update_shopping_list", start, err)
	return updated, err
}

func (g *instrumentedGateway) DeleteShoppingList(ctx context.Context, ownerID, listID string) error {
	start := time.Now()
	err := g.next.DeleteShoppingList(ctx, ownerID, listID)
	observe("delete_shopping_list", start, err)
	return err
}
