// Package app wires spec loading, validation, planning, and building into
// the single entrypoint the CLI glue calls, decoupled from any specific
// frontend.
package app
