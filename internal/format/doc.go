// Package format renders heap objects as single diagnostic lines and
// prints whole-heap dumps and reachability trees through the host.
//
// Rendering reads arena words directly and never faults: an unknown tag
// or an unreadable word is shown in the output instead. Every line is
// built in a fixed-capacity Sink and silently truncated when it fills.
package format
