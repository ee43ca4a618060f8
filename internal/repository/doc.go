// Package repository defines the snapshot store interface.
//
// A snapshot is one host data value captured at a point in time, kept so the
// data of a host can be compared across runs. The sqlite subpackage stores
// snapshots with the binary value codec: one type tag column and one payload
// blob per row, so a snapshot reads back as exactly the value that was saved.
package repository
