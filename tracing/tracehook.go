// Package tracing records what happens during ticks.
package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/cosim/sim/hooking"
)

// CollectTrace attaches a tracer to a hookable domain, such as an updater or
// a coupling manager. Attaching the same tracer twice panics.
func CollectTrace(domain hooking.Hookable, tracer hooking.Hook) {
	for _, hook := range domain.Hooks() {
		if hook == tracer {
			panic(fmt.Sprintf("domain already has tracer %s",
				reflect.TypeOf(tracer)))
		}
	}

	domain.AcceptHook(tracer)
}
