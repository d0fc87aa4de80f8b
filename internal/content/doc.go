// Package content owns the canonical copies of uploaded originals.
//
// Files are identified by the SHA-1 of their bytes. The store finds an
// existing record for a digest, places new originals under their canonical
// name in the big directory, and serializes concurrent work on the same
// digest so that identical uploads cannot both be imported.
package content
