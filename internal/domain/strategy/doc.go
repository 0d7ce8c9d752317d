// Package strategy is the stage/drift/rebalance rules engine.
//
// Every function here is pure: output depends only on input, nothing is
// cached or shared, and all results are freshly allocated. Callers may
// invoke them concurrently without coordination.
package strategy
