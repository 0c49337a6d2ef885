// Package heartbeat supervises long-running external operations. Operations
// report progress as events on a channel; the supervisor warns on silence and
// kills operations that exceed the configured ceiling so a wedged encoder or
// metric process can never hang a conversion forever.
package heartbeat
