package store

// crud holds the querier every chunk/reference operation runs against, so
// the same method set works unmodified whether called on a *Store (plain
// connection) or a *Tx (one file's reconciliation transaction).
type crud struct {
	q querier

	// StrictQualifierMatch controls FindDefinition (§9 Open Question):
	// when false (the historical/observed behavior), a reference
	// "type:name" resolves to any definition chunk matching name alone,
	// ignoring type. When true, type must also match.
	StrictQualifierMatch bool
}
