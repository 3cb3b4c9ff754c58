/*
Package domain contains the leaf data types shared by every automaton component.

It is kept free of orchestration logic: the transition protocol lives in the runtime,
while this package only describes the data that flows through it.

# Key Entities

  - Context: the observable record shared by all states of one automaton. It is mutated
    through an explicit API (Set, Delete, Apply) that emits structured change sets.
  - Buffer: the private record shared by all states of one automaton. It is never observed.
  - FailedOutput: the diagnostic record captured when an action handler fails.
  - Errors: the sentinel errors and structured error types of the engine.
*/
package domain
