/*
Package automata is a reactive finite-state-automaton engine for building interactive CLIs, services and agent tools.

An automaton owns a set of named states, a shared observable context, a private buffer and one active state. Each state maps action names to handlers. A transition request (Delta) is dispatched to the active state's handler, which returns a result (Omega) naming the next state. The engine switches states, runs the exit hook of the previous state, attaches the views of the new state and notifies listeners.

# Concept

Engine faults never escape a transition. A handler error, a panic or an expired deadline routes the automaton to the reserved "failed" state, which remembers where the failure happened; the built-in "back" action returns there. Actions the active state does not define route to "failed" as well.

Views are stateless render bindings. The same view may be attached to states of several automata, and rendered output can request further transitions through the view, which routes them to the automaton that accepts the action.

# Key Features

  - Instance-owned registries: every Factory is independent.
  - Observable context with transactional updates (Context.Apply).
  - Serialized transits per automaton, queued in FIFO order or rejected.
  - Lifecycle events for Apps, hooks, Prometheus metrics and event buses.
  - Declarative YAML definitions with template views (package dsl).

# Usage

	package main

	import (
		"context"
		"fmt"
		"log"

		"github.com/aretw0/automata"
	)

	func main() {
		eng, err := automata.Load("./login.yaml")
		if err != nil {
			log.Fatal(err)
		}
		defer eng.Close()

		omega, err := eng.Transit(context.Background(), automata.TransitRequest{
			Action: "submit",
			Input:  map[string]any{"user": "ann"},
		})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println("now in", omega.Next)
	}

Without a definition file, use New and build views, states and automata through Engine.Factory.
*/
package automata
