package ot

// Session owns a Transformable document and the append-only log of
// operations applied to it, and is the entry point concurrent clients
// rebase their edits through: each call to Apply rebases the caller's
// transactions against everything committed since the version the
// caller last saw, then applies them in order, rolling back any
// transaction that turns out to conflict with the now-current state.
//
// A Session is not safe for concurrent use by multiple goroutines; the
// one-goroutine-per-document model in pkg/session is what serializes
// access to it.
type Session[T Transformable] struct {
	doc        T
	operations []Operation
	deleted    int
}

// NewSession wraps doc in a Session starting at version 0.
func NewSession[T Transformable](doc T) *Session[T] {
	return &Session[T]{doc: doc}
}

// Doc returns the current document state.
func (s *Session[T]) Doc() T { return s.doc }

// Version returns the number of operations ever committed, including
// ones since compacted out of the retained log.
func (s *Session[T]) Version() int { return s.deleted + len(s.operations) }

// Syncable reports whether version still falls within the retained
// log, i.e. whether Apply can rebase a transaction submitted at that
// version without having discarded the history it would need.
func (s *Session[T]) Syncable(version int) bool {
	if version > s.deleted+len(s.operations) {
		return false
	}
	if version < s.deleted {
		return false
	}
	return true
}

// OperationsSince returns the operations committed after version, or
// nil (and false) if version has fallen out of the retained window.
func (s *Session[T]) OperationsSince(version int) ([]Operation, bool) {
	if !s.Syncable(version) {
		return nil, false
	}
	start := version - s.deleted
	return s.operations[start:], true
}

// Compact discards retained operations older than keepFrom, which must
// be a version no client still needs to rebase against. Session does
// not track acknowledgements; callers are responsible for only
// compacting once every client has moved past keepFrom.
func (s *Session[T]) Compact(keepFrom int) {
	if keepFrom <= s.deleted {
		return
	}
	if keepFrom > s.deleted+len(s.operations) {
		keepFrom = s.deleted + len(s.operations)
	}
	cut := keepFrom - s.deleted
	s.operations = append([]Operation{}, s.operations[cut:]...)
	s.deleted = keepFrom
}

// Apply rebases transactions against every operation committed since
// version, then applies each transaction's operations in order. It
// returns the inverse of every operation that committed, in commit
// order, which the caller can use to build an undo stack. An operation
// that fails to apply (TryApply returns an error, or (nil, nil) to
// signal a structural no-op) rolls back every operation already
// committed earlier in its own transaction; it never rolls back
// earlier transactions in the same batch, since transactions are
// independent units.
func (s *Session[T]) Apply(transactions [][]Operation, version int) ([]Operation, error) {
	if !s.Syncable(version) {
		return nil, ErrUnsyncable
	}

	if version != s.Version() {
		start := version - s.deleted
		rebased, err := Rebase(transactions, s.operations[start:])
		if err != nil {
			return nil, err
		}
		transactions = rebased
	}

	var undos []Operation
	var committed []Operation

	for _, tr := range transactions {
		applied := 0
		for _, op := range tr {
			undo, err := s.doc.TryApply(op)
			if err != nil {
				rollback(s.doc, &committed, &undos, applied)
				return nil, err
			}
			if undo == nil {
				rollback(s.doc, &committed, &undos, applied)
				applied = 0
				break
			}
			undos = append(undos, *undo)
			committed = append(committed, op)
			applied++
		}
	}

	s.operations = append(s.operations, committed...)
	return undos, nil
}

func rollback[T Transformable](doc T, committed, undos *[]Operation, applied int) {
	for i := 0; i < applied; i++ {
		n := len(*committed)
		*committed = (*committed)[:n-1]
		undo := (*undos)[len(*undos)-1]
		*undos = (*undos)[:len(*undos)-1]
		if _, err := doc.TryApply(undo); err != nil {
			panic("ot: undo application failed, document is corrupt: " + err.Error())
		}
	}
}
