/*
Package runtime implements the automaton engine: states, views, automata and the
factory that registers and connects them.

A transition is requested with a Delta, dispatched to the active state's action
handler and answered with an Omega naming the next state. The automaton swaps its
active state, attaches the views of the new state to the Omega and notifies its
listeners, so that an App can re-render as a pure function of the new state.

Handler failures never escape Transit: they are captured into the reserved
"failed" state, from which the "back" action recovers.
*/
package runtime
