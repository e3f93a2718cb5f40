/*
Package partition serializes writers per scope partition.

Every boundary mutation of a scope must run with no other writer interleaving.
The Manager keeps one in-process mutex per scope key (garbage collected by
reference counting) and can additionally hold a distributed lock so several
processes sharing one store also serialize. Different scopes never contend.
*/
package partition
