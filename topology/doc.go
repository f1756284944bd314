// Package topology decides which nodes may talk to each other.
//
// An Adjacency is an undirected graph over node indices 0..n-1 with no
// self-loops. A Network exposes the peers of each node and may regenerate
// its adjacency over time.
package topology
