// Package explore is the parameter-search engine. Given a probed source, a
// predicted parameter, and a strategy, it drives encode trials through a
// memoizing cache, optionally calibrates a fast approximate encoder against
// the exact one, and converges on the parameter that best satisfies the
// strategy's size and quality policy. Each engine instance exclusively owns
// its state; trials within one file are strictly sequential.
package explore
