/*
Package dsl declares automata as data and compiles them onto a runtime.Factory.

A Definition can be parsed from YAML or assembled with the fluent Builder. Actions are
declarative: they name the next state, assign or unset context paths, add output
values or fail with a message. String values are Go text/template expressions
evaluated against the transition (.Input, .Context, .From, .Action). Views are
templates evaluated against the automaton snapshot.

Example definition:

	views:
	  - name: greeting
	    template: "Hello, {{ .Context.user }}!"
	automata:
	  - name: login
	    initial: idle
	    states:
	      - name: idle
	        actions:
	          submit:
	            next: authenticated
	            assign:
	              user: "{{ .Input.user }}"
	      - name: authenticated
	        views: [greeting]
	        actions:
	          logout: idle

Building it:

	def, err := dsl.LoadFile("login.yaml")
	if err != nil {
		return err
	}
	f := runtime.NewFactory()
	automata, err := dsl.Build(f, def)
*/
package dsl
