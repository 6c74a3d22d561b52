package ot

// Transformable is a document type whose state can be mutated one
// generic Operation at a time. TryApply must itself be atomic for a
// single operation: on success it returns the operation that would
// undo what it just did, so Session.Apply can unwind a transaction
// that fails partway through. Returning (nil, nil) means the operation
// was a structural no-op (e.g. it targeted state that no longer
// exists) and the transaction containing it should be rolled back
// without treating it as an error.
type Transformable interface {
	TryApply(op Operation) (*Operation, error)
}
