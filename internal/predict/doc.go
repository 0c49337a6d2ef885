// Package predict estimates the starting quality parameter for a source file
// from its bits-per-pixel and a chain of content factors. The output seeds the
// search engine; it is never used as a final answer.
package predict
