/*
Package observability provides tools for monitoring the automata engine.

It includes Prometheus metrics and structured logging expressed as
runtime.LifecycleHooks, plus Combine to attach several hook sets as one.
*/
package observability
