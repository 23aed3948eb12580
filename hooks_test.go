package puzzle

import (
	"net/http"
	"testing"
)

type recordingHooks struct {
	BaseHooks
	created bool
}

func (h *recordingHooks) OnCreate() { h.created = true }

func TestHooksRegistryResolveDefault(t *testing.T) {
	r := NewHooksRegistry()
	h := r.Resolve("missing")
	if _, ok := h.(BaseHooks); !ok {
		t.Errorf("Resolve() = %T, want BaseHooks", h)
	}
}

func TestHooksRegistryRegisterAndResolve(t *testing.T) {
	r := NewHooksRegistry()
	custom := &recordingHooks{}
	r.Register("home", custom)

	got := r.Resolve("home")
	if got != custom {
		t.Fatalf("Resolve() = %v, want the registered hooks", got)
	}
	got.OnCreate()
	if !custom.created {
		t.Error("OnCreate() was not invoked on the registered hooks")
	}
}

func TestBaseHooksAreNoOps(t *testing.T) {
	var h PageHooks = BaseHooks{}
	h.OnCreate()
	h.OnRequest(&http.Request{})
	h.OnChunk("x")
	h.OnResponseEnd()
}
