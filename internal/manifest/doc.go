// Package manifest loads and validates the declarative hook manifest.
//
// A manifest names the hooks (executable, phase, dependencies, timeout)
// and per-phase execution flows (declared order plus the subset allowed
// to run concurrently). It is loaded once per run and immutable after.
package manifest
