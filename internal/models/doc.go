// Package models owns the alignment model slot shared by every worker.
//
// Provider lazily loads one model through a Loader and hands the cached
// instance to later callers. Loading is serialized: concurrent first callers
// wait for a single load instead of racing. The slot holds one size at a
// time; asking for another size loads it and evicts the previous one, while
// callers that already hold the old model keep their reference.
//
// Catalog lists the sizes offered to users. It is informational and is not
// checked against what the backend can actually load.
package models
