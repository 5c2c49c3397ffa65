package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	NoopCaptureHooks{}.OnCapture(ctx, 0, "initial_state", "initial_state", time.Millisecond, nil)

	r := NoopRenderHooks{}
	r.OnRenderStart(ctx, 4)
	r.OnFrameRendered(ctx, 0, false, time.Millisecond)
	r.OnRenderComplete(ctx, 4, 1024, time.Second, nil)

	i := NoopInvocationHooks{}
	i.OnInvoke(ctx, []string{"deckreel", "render"})
	i.OnInvokeComplete(ctx, 0, time.Second, nil)
}

type testCaptureHooks struct{ NoopCaptureHooks }
type testRenderHooks struct{ NoopRenderHooks }
type testInvocationHooks struct{ NoopInvocationHooks }

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()

	assert.IsType(t, NoopCaptureHooks{}, Capture())
	assert.IsType(t, NoopRenderHooks{}, Render())
	assert.IsType(t, NoopInvocationHooks{}, Invocation())

	c := &testCaptureHooks{}
	SetCaptureHooks(c)
	assert.Same(t, c, Capture())

	r := &testRenderHooks{}
	SetRenderHooks(r)
	assert.Same(t, r, Render())

	i := &testInvocationHooks{}
	SetInvocationHooks(i)
	assert.Same(t, i, Invocation())

	Reset()
	assert.IsType(t, NoopCaptureHooks{}, Capture())
}

func TestSetNilHooksIsIgnored(t *testing.T) {
	Reset()
	defer Reset()

	c := &testCaptureHooks{}
	SetCaptureHooks(c)
	SetCaptureHooks(nil)
	assert.Same(t, c, Capture())
}
