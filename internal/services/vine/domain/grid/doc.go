// Package grid models the 5×5×5 occupancy lattice the vine grows through.
//
// A Grid holds one shared vine path: the set of occupied cells, the frontier
// (the most recently placed segment) and the number of moves made since the
// last reset. TryAdvance is the single legality gate; the authoritative
// session applies it as ground truth and the client mirror calls Check with
// the same rules to avoid sending moves it already knows are illegal.
package grid
