// Package harness runs reconciliation scenarios against a real engine.
//
// A scenario is a YAML file describing a registry (which program versions
// are published, which fetches fail or hang), a starting manifest, a list
// of engine operations and assertions on the final project state:
//
//	name: isolated_failure
//	description: "one invalid document does not stop the others"
//	registry:
//	  - name: vault
//	    version: 0.2.0
//	    network: devnet
//	    fixture: ../../../../testdata/interfaces/vault.json
//	manifest:
//	  programs:
//	    vault: {version: 0.2.0, program_id: GYVb..., network: devnet}
//	steps:
//	  - op: install
//	    codegen: true
//	    expect:
//	      installed: [vault]
//	assertions:
//	  - type: manifest_record
//	    name: vault
//	    expect: {idl_path: ./program/idl/vault.json}
//
// Each scenario runs in a fresh temporary project with a deterministic
// clock and sequential run IDs ("run-1", "run-2", ...), so the reports of
// a scenario can be compared byte for byte against a golden file (see
// RunWithGolden).
//
// Fixture paths are resolved relative to the scenario file.
package harness
