// Package utask implements a cooperative, message based task scheduler,
// intended for resource constrained environments, where a full RTOS is
// undesirable.
//
// Application code posts messages, each addressed to a Task (a handler
// callback) and an id, with an optional payload allocated from a fixed block
// memory pool. Messages are dispatched in expiration order, by a single
// threaded, run to completion loop, see Core.Run. Messages may also be sent
// from interrupt context (any other goroutine), via a small lock-free queue,
// see Core.MessageSendISR.
//
// All storage is sized once, by New. Time is measured in ticks of a wrapping
// counter, advanced by Core.Tick, see the tick package.
package utask
