// Package fuzztests houses Go fuzz harnesses that load arbitrary bytes as
// a heap arena and run the scanner, the walker and the debug printer over
// them. Corrupt input must surface as a heap fault, never as any other
// panic, and the printer must not fault at all.
package fuzztests
