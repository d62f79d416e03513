package stacktrace_test

import (
	"testing"

	"github.com/shandysiswandi/otpguard/internal/pkg/stacktrace"
	"github.com/stretchr/testify/assert"
)

func TestInternalPaths(t *testing.T) {
	t.Parallel()

	stack := []byte(`goroutine 7 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
github.com/shandysiswandi/otpguard/internal/twofactor/usecase.(*Usecase).Disable(0xc000)
	/src/otpguard/internal/twofactor/usecase/disable.go:41 +0x1a5
net/http.HandlerFunc.ServeHTTP(0x0)
	/usr/local/go/src/net/http/server.go:2220 +0x29
`)

	assert.Equal(t, []string{"internal/twofactor/usecase/disable.go:41"}, stacktrace.InternalPaths(stack))
	assert.Empty(t, stacktrace.InternalPaths(nil))
}
