// Package gateway moves packed event payloads between endpoints. It
// pairs the generated pack/unpack methods with a caller-supplied
// transport: requests carry a correlation id and reply endpoint, and
// replies complete the pending call they belong to.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/exp/maps"

	"github.com/frostylucas/fx-events/runtime/serialization"
)

const replyPrefix = "fx.reply."

// Message is the endpoint-addressed envelope moved across the
// transport.
type Message struct {
	ID       string
	Endpoint string
	ReplyTo  string
	Payload  []byte
}

// Transport delivers outbound messages. Inbound messages are handed to
// Gateway.Receive by whoever owns the receiving side of the transport.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Handler consumes the request payload from r and packs its results
// into w.
type Handler func(ctx context.Context, r *serialization.Reader, w *serialization.Writer) error

type Options struct {
	Logger *slog.Logger
	Tracer trace.Tracer
}

type Gateway struct {
	transport Transport
	logger    *slog.Logger
	tracer    trace.Tracer

	mu       sync.Mutex
	handlers map[string]Handler
	pending  map[string]chan []byte
}

func New(t Transport, opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer("fxevents/gateway")
	}

	return &Gateway{
		transport: t,
		logger:    logger,
		tracer:    tracer,
		handlers:  make(map[string]Handler),
		pending:   make(map[string]chan []byte),
	}
}

// Handle registers the handler for an endpoint. Registering the same
// endpoint twice panics.
func (g *Gateway) Handle(endpoint string, h Handler) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.handlers[endpoint]; ok {
		panic(fmt.Sprintf("gateway: handler already registered for endpoint %q", endpoint))
	}
	g.handlers[endpoint] = h
}

func (g *Gateway) Endpoints() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	eps := maps.Keys(g.handlers)
	sort.Strings(eps)
	return eps
}

// Emit sends a one-way event to endpoint.
func (g *Gateway) Emit(ctx context.Context, endpoint string, args serialization.Marshaler) (err error) {
	defer func() {
		if err == nil {
			err = serialization.CatchPanics(recover())
		}
	}()

	w := serialization.NewWriter()
	if args != nil {
		args.PackSerializedBytes(w)
	}

	return g.transport.Send(ctx, Message{
		ID:       gonanoid.Must(16),
		Endpoint: endpoint,
		Payload:  w.Data(),
	})
}

// Call sends a request to endpoint and unpacks the correlated reply
// into reply. A nil reply discards the results. Remote handler errors
// come back as errors here; serializable error types registered on
// both sides round-trip as values.
func (g *Gateway) Call(ctx context.Context, endpoint string, args serialization.Marshaler, reply serialization.Unmarshaler) (err error) {
	ctx, span := g.tracer.Start(ctx, "gateway.call "+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err == nil {
			err = serialization.CatchPanics(recover())
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	id := gonanoid.Must(16)
	replyTo := replyPrefix + id

	ch := make(chan []byte, 1)
	g.mu.Lock()
	g.pending[replyTo] = ch
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		delete(g.pending, replyTo)
		g.mu.Unlock()
	}()

	w := serialization.NewWriter()
	if args != nil {
		args.PackSerializedBytes(w)
	}

	if err := g.transport.Send(ctx, Message{
		ID:       id,
		Endpoint: endpoint,
		ReplyTo:  replyTo,
		Payload:  w.Data(),
	}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case payload := <-ch:
		r := serialization.NewReader(payload)
		if !r.Bool() {
			return r.Error()
		}
		if reply != nil {
			reply.UnpackSerializedBytes(r)
		}
		return nil
	}
}

// Receive dispatches one inbound message: replies complete the pending
// call they correlate with; anything else goes to the endpoint handler,
// whose results are sent back to ReplyTo when one is set.
func (g *Gateway) Receive(ctx context.Context, msg Message) error {
	g.mu.Lock()
	if ch, ok := g.pending[msg.Endpoint]; ok {
		delete(g.pending, msg.Endpoint)
		g.mu.Unlock()
		ch <- msg.Payload
		return nil
	}
	h, ok := g.handlers[msg.Endpoint]
	g.mu.Unlock()

	if !ok {
		g.logger.Warn("no handler for endpoint", "endpoint", msg.Endpoint, "id", msg.ID)
		return fmt.Errorf("gateway: no handler for endpoint %q", msg.Endpoint)
	}

	ctx, span := g.tracer.Start(ctx, "gateway.handle "+msg.Endpoint, trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	results := serialization.NewWriter()
	results.Bool(true)
	err := func() (err error) {
		defer func() {
			if err == nil {
				err = serialization.CatchPanics(recover())
			}
		}()
		return h(ctx, serialization.NewReader(msg.Payload), results)
	}()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error("handler failed", "endpoint", msg.Endpoint, "id", msg.ID, "err", err)
		results = serialization.NewWriter()
		results.Bool(false)
		results.Error(err)
	}

	if msg.ReplyTo == "" {
		return err
	}

	return g.transport.Send(ctx, Message{
		ID:       gonanoid.Must(16),
		Endpoint: msg.ReplyTo,
		Payload:  results.Data(),
	})
}
