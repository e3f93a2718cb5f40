/*
Package observability turns tree mutation hooks into Prometheus metrics and
structured log lines.

Both are plain domain.Hooks; use Chain to register more than one.
*/
package observability
