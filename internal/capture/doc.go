// Package capture records command-list captures as a tree of graphs.
//
// A root graph is created when a command list begins capture. Waiting on an
// event that a capturing graph signalled from another command list forks a
// child graph onto that list; a later wait in the parent on an event the
// child signalled joins it back. Every graph of a capture lives in one Store
// and is addressed by GraphID.
package capture
