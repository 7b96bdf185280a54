package kit

import (
	"context"
	"errors"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	chained := Chain(mw("a"), mw("b"), mw("c"))(base)
	resp, err := chained(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "c_before", "endpoint", "c_after", "b_after", "a_after"}
	if len(order) != len(expected) {
		t.Fatalf("order length: got %d, want %d", len(order), len(expected))
	}
	for i := range expected {
		if order[i] != expected[i] {
			t.Errorf("order[%d]: got %q, want %q", i, order[i], expected[i])
		}
	}
}

func TestChain_ErrorPropagates(t *testing.T) {
	sentinel := errors.New("boom")
	seen := false

	mw := func(next Endpoint) Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			resp, err := next(ctx, req)
			seen = err != nil
			return resp, err
		}
	}
	base := func(_ context.Context, _ any) (any, error) {
		return nil, sentinel
	}

	_, err := Chain(mw)(base)(context.Background(), nil)
	if !errors.Is(err, sentinel) {
		t.Fatalf("error: got %v", err)
	}
	if !seen {
		t.Error("middleware did not observe the error")
	}
}
