package identity

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rosejohnson3923/pathfinity-app-sub007/internal/domain"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func serve(t *testing.T, h fasthttp.RequestHandler, opts ...Option) *HTTPResolver {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	client := &fasthttp.Client{Dial: func(addr string) (net.Conn, error) { return ln.Dial() }}
	return NewHTTPResolver("http://identity.test/", append([]Option{WithClient(client)}, opts...)...)
}

func TestHTTPResolverResolvesToken(t *testing.T) {
	r := serve(t, func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) != "/v1/identity" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		if string(ctx.Request.Header.Peek("Authorization")) != "Bearer tok-1" {
			ctx.SetStatusCode(fasthttp.StatusUnauthorized)
			return
		}
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"id":"u-1","name":"ana","display_name":"Ana"}`)
	})
	id, err := r.Resolve(context.Background(), "tok-1")
	if err != nil { t.Fatalf("resolve: %v", err) }
	if id.ID != "u-1" || id.Name != "Ana" { t.Fatalf("identity = %+v", id) }

	if _, err := r.Resolve(context.Background(), "bad"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("bad token err = %v", err)
	}
	if _, err := r.Resolve(context.Background(), "  "); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("empty token err = %v", err)
	}
}

func TestHTTPResolverRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	r := serve(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) < 3 {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			return
		}
		ctx.SetBodyString(`{"id":"u-2","name":"bo"}`)
	})
	id, err := r.Resolve(context.Background(), "tok")
	if err != nil { t.Fatalf("resolve: %v", err) }
	if id.Name != "bo" || calls.Load() != 3 { t.Fatalf("identity = %+v after %d calls", id, calls.Load()) }
}

func TestHTTPResolverGivesUpAsTransient(t *testing.T) {
	var calls atomic.Int32
	r := serve(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
	}, WithRetry(2))
	_, err := r.Resolve(context.Background(), "tok")
	if !errors.Is(err, domain.ErrTransient) || !domain.IsRetryable(err) { t.Fatalf("err = %v", err) }
	if calls.Load() != 2 { t.Fatalf("calls = %d, want 2", calls.Load()) }
}

func TestHTTPResolverRejectsEmptyID(t *testing.T) {
	r := serve(t, func(ctx *fasthttp.RequestCtx) { ctx.SetBodyString(`{"id":"","name":"ghost"}`) })
	if _, err := r.Resolve(context.Background(), "tok"); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("err = %v", err)
	}
}

func TestGuestResolver(t *testing.T) {
	a, _ := GuestResolver{}.Resolve(context.Background(), " Kim ")
	b, _ := GuestResolver{}.Resolve(context.Background(), "")
	if !strings.HasPrefix(a.ID, "guest-") || a.Name != "Kim" { t.Fatalf("guest = %+v", a) }
	if a.ID == b.ID || !strings.HasPrefix(b.Name, "Guest-") { t.Fatalf("second guest = %+v", b) }
}
