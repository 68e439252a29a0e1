/*
Package domain contains the factored space model shared by every other package.

It defines state variables, the tuples that describe full or partial states, and the
actions an agent can take. Everything here is an immutable value once constructed and
is free of I/O, so values can be cached and shared across goroutines.

# Key Entities

  - StateVarDefinition: a named variable with a finite, ordered domain of legal Values.
  - StateVarTuple: a set of assignments, used both as a full state and as a predicate.
  - Action: a named, parameterized action with static and source-derived attributes.
  - ActionDefinition: a finite set of actions of one type, atomic or composite.

The sentinel errors used across the module live in errors.go.
*/
package domain
