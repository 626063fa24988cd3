// Package locking acquires ordered sets of component lock handles.
//
// Every piece of work that touches component state runs inside Sync: the
// handles are acquired one after another, in the order given, and the task
// only runs once all of them are held. They are released in reverse order
// when the task returns or panics.
//
// Deadlock hazard: if two call sites acquire overlapping sets of handles in
// different orders, they can deadlock. Nothing here detects that at runtime.
// Any acquisition that spans more than one component must take its order from
// a single canonical source, the workspace's component list, through Order.
// Order.IsCanonical lets tests assert that a lock sequence respects it.
package locking
