// Package goroutine provides utilities for launching goroutines with panic
// recovery.
package goroutine

import (
	"fmt"
	"runtime/debug"

	"github.com/veil-vpn/veil/internal/shared/logger"
)

// SafeGo launches a goroutine that logs panics with a stack trace instead of
// crashing the process.
func SafeGo(log logger.Interface, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("goroutine panicked",
					"goroutine", name,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
