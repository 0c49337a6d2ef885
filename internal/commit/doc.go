// Package commit applies the acceptance policy to a finished search and
// places accepted artifacts atomically. The input file is never modified;
// a rejected candidate leaves the filesystem exactly as it was.
package commit
