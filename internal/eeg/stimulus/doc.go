// Package stimulus owns the flash scheduler for the row/column speller
// matrix: a tick-driven state machine that decides when each row or column
// flashes, emits FlashEvents stamped with the observed presentation time,
// and reports trial completion.
//
// The scheduler is free-standing: it never touches a renderer or a timer
// itself. Any periodic driver (render loop, timer goroutine, test harness)
// feeds it a monotonically increasing clock value via Advance.
package stimulus
