// Package scenario runs YAML scripts of tracker operations and checks each
// result against an expectation.
//
//	name: no-cascade
//	steps:
//	  - {op: module, as: M1}
//	  - {op: instance, module: M1, as: I1}
//	  - {op: resource, instance: I1, as: R1}
//	  - {op: remove_module, module: M1, expect: true}
//	  - {op: get_resource, handle: R1, expect: true}
//
// Steps that create something bind the new handle to the name in "as".
// A step with "repeat: N" runs N times and binds as1..asN.
package scenario
