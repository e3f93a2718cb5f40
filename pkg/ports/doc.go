/*
Package ports defines the driven ports (interfaces) of the arbor engine.

These interfaces decouple the nested set algorithms from concrete row stores and
lock services, allowing the engine to run over memory, SQLite, PostgreSQL or
BadgerDB without change.

# Key Interfaces

  - Reader: point lookups, interval filters and the max right boundary of a scope.
  - Tx: the bulk boundary writes a single scope transaction may issue.
  - Store: a Reader that can open scope transactions.
  - DistributedLocker: cross-process mutual exclusion per scope.

RunStoreContract is a reusable suite every Store adapter runs in its own tests.
*/
package ports
