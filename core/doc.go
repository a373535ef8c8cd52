// Package core holds the domain model and collaborator contracts for the
// hookrelay gateway: routing records, the canonical event envelope,
// verification outcomes, the error taxonomy, and the retry helper shared by
// the dispatch and broadcast layers.
package core
