// Package modelfile reads declarative XMDP descriptions from YAML or JSON.
//
// A model file lists the state variables, the action definitions (atomic and
// composite), one tabular PSO per action definition, the QFunctions with
// rule-based values, events or counts, and the cost function:
//
//	name: robot
//	variables:
//	  - name: loc
//	    values: [a, b, goal]
//	actions:
//	  - name: moveTo
//	    actions: [[b], [goal]]
//	initial: {loc: a}
//	goal: {loc: goal}
//	transitions:
//	  - definition: moveTo
//	    preconditions:
//	      - {action: moveTo(b), var: loc, values: [a]}
//	    effects:
//	      - discriminant: [loc]
//	        effect: [loc]
//	        table:
//	          - action: moveTo(b)
//	            when: {loc: a}
//	            outcomes: [{set: {loc: b}, probability: 1}]
//	qfunctions:
//	  - name: time
//	    definition: moveTo
//	    values: [{value: 1}]
//	cost:
//	  terms: [{qfunction: time, slope: 1, scaling: 1}]
//
// Files are decoded into a generic map, mapped onto File with mapstructure,
// checked with struct validation and finally resolved into an *mdp.XMDP.
// Every failure found in one pass is reported in a single *AggregateError.
//
// A policy file lists full states with the ID of the action chosen in each:
//
//	decisions:
//	  - {state: {loc: a, speed: slow}, action: moveTo(b)}
//
// ParsePolicy resolves it against an already built model.
package modelfile
