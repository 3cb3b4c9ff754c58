/*
Package ports defines the driven ports (interfaces) for the automata engine.

These interfaces decouple the engine from external implementations, so lifecycle
events can be fanned out in-process or across processes without the runtime knowing
which transport is used.

# Key Interfaces

  - EventBus: Publishes encoded lifecycle events on a topic and streams them to subscribers.
*/
package ports
