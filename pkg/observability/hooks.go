// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers can register hooks at startup
// to receive events about frame capture, rendering, and renderer invocation.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetCaptureHooks(&myCaptureHooks{})
//	    observability.SetRenderHooks(&myRenderHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Capture().OnCapture(ctx, index, label, kind, duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Capture Hooks
// =============================================================================

// CaptureHooks receives events from the frame capture sequencer.
type CaptureHooks interface {
	// OnCapture records one capture attempt. index is the frame index that
	// was (or would have been) assigned; kind is the event kind name.
	OnCapture(ctx context.Context, index int, label, kind string, duration time.Duration, err error)
}

// =============================================================================
// Render Hooks
// =============================================================================

// RenderHooks receives events from the render engine.
type RenderHooks interface {
	OnRenderStart(ctx context.Context, frames int)
	// OnFrameRendered records one rasterized frame; cached is true when the
	// raster came from the frame cache.
	OnFrameRendered(ctx context.Context, index int, cached bool, duration time.Duration)
	OnRenderComplete(ctx context.Context, frames int, size int64, duration time.Duration, err error)
}

// =============================================================================
// Invocation Hooks
// =============================================================================

// InvocationHooks receives events from the render orchestrator's external
// process boundary.
type InvocationHooks interface {
	OnInvoke(ctx context.Context, argv []string)
	OnInvokeComplete(ctx context.Context, exitCode int, duration time.Duration, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopCaptureHooks is a no-op implementation of CaptureHooks.
type NoopCaptureHooks struct{}

func (NoopCaptureHooks) OnCapture(context.Context, int, string, string, time.Duration, error) {}

// NoopRenderHooks is a no-op implementation of RenderHooks.
type NoopRenderHooks struct{}

func (NoopRenderHooks) OnRenderStart(context.Context, int)                                {}
func (NoopRenderHooks) OnFrameRendered(context.Context, int, bool, time.Duration)         {}
func (NoopRenderHooks) OnRenderComplete(context.Context, int, int64, time.Duration, error) {}

// NoopInvocationHooks is a no-op implementation of InvocationHooks.
type NoopInvocationHooks struct{}

func (NoopInvocationHooks) OnInvoke(context.Context, []string)                            {}
func (NoopInvocationHooks) OnInvokeComplete(context.Context, int, time.Duration, error) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	captureHooks    CaptureHooks    = NoopCaptureHooks{}
	renderHooks     RenderHooks     = NoopRenderHooks{}
	invocationHooks InvocationHooks = NoopInvocationHooks{}
	hooksMu         sync.RWMutex
)

// SetCaptureHooks registers custom capture hooks.
// This should be called once at application startup before any capture.
func SetCaptureHooks(h CaptureHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		captureHooks = h
	}
}

// SetRenderHooks registers custom render hooks.
// This should be called once at application startup before any render.
func SetRenderHooks(h RenderHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		renderHooks = h
	}
}

// SetInvocationHooks registers custom invocation hooks.
// This should be called once at application startup before any render invocation.
func SetInvocationHooks(h InvocationHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		invocationHooks = h
	}
}

// Capture returns the registered capture hooks.
func Capture() CaptureHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return captureHooks
}

// Render returns the registered render hooks.
func Render() RenderHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return renderHooks
}

// Invocation returns the registered invocation hooks.
func Invocation() InvocationHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return invocationHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	captureHooks = NoopCaptureHooks{}
	renderHooks = NoopRenderHooks{}
	invocationHooks = NoopInvocationHooks{}
}
