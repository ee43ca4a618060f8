// Package domain defines the core types shared by every hostlink component.
//
// This package contains the value objects that cross the boundary between the
// connection core and its callers: typed fact values, connection parameters and
// the structured error returned by every fallible operation.
//
// # Typed Values
//
// Value is a tagged union over Null, Bool, Integer, Float, String, Array and Map.
// Array and Map hold Values recursively. A Value is immutable once built: the
// constructors copy their inputs and the accessors hand out copies.
//
// Kind is the discriminant of a Value and doubles as the wire type tag used by
// the binary codec. Kind.Valid reports whether a tag belongs to the closed set.
//
// Pointer navigates a Value with RFC 6901 JSON Pointer syntax ("/os/name",
// "/interfaces/0/ip").
//
// # Connection Parameters
//
// ConnectionParams selects how a session is opened: Discovered (locate an agent
// on the network), Endpoint (explicit address plus TransportDescriptor) or
// Payload (a pre-serialized bootstrap blob).
//
// # Errors
//
// Error carries an ErrorKind from a closed set and a message. Every fallible
// operation at the core boundary returns a *Error; KindOf recovers the kind from
// any error chain and Classify converts foreign errors without losing them.
//
// # Design Principles
//
// - Immutable value objects
// - No network, storage or logging dependencies
// - Closed enumerations with explicit String forms
package domain
