package command

// TransformBatch reconciles a client-submitted batch of operations,
// expressed against the version the client last saw, with precededBy,
// the operations the server has committed since that version. It
// mirrors pkg/ot's rebase engine but at the single-operation
// granularity the document session submits at (domain operations are
// not grouped into transactions the way generic OT operations are; a
// batch here is one client-submitted operation list, not a list of
// transactions).
//
// Each op first walks backward across the batch's own prior ops (in
// their original, not-yet-transformed form), recovering through Map
// when a prior op annihilated it. If the backward walk completes
// without annihilating, the op is walked forward through precededBy
// and then through the already-transformed prior batch ops. Ops that
// end up annihilated with no recovery are dropped from the result.
func TransformBatch(batch []Operation, precededBy []Operation) []Operation {
	transformed := make([]Operation, 0, len(batch))
	dropped := make([]bool, len(batch))

	for i, op := range batch {
		cur := op
		mapped := false
		ok := true

		for j := i - 1; j >= 0; j-- {
			if dropped[j] {
				continue
			}
			next, transformOK := TransformBackward(cur, batch[j])
			if transformOK {
				cur = next
				continue
			}
			mappedOp, mapOK := Map(cur, batch[j], transformed[j])
			if !mapOK {
				ok = false
				break
			}
			cur = mappedOp
			for k := j + 1; k < i; k++ {
				if dropped[k] {
					continue
				}
				fwd, fwdOK := TransformForward(cur, transformed[k])
				if !fwdOK {
					ok = false
					break
				}
				cur = fwd
			}
			mapped = true
			break
		}

		if !ok {
			dropped[i] = true
			transformed = append(transformed, Operation{})
			continue
		}

		if !mapped {
			for _, pre := range precededBy {
				fwd, fwdOK := TransformForward(cur, pre)
				if !fwdOK {
					ok = false
					break
				}
				cur = fwd
			}
			if ok {
				for k := 0; k < i; k++ {
					if dropped[k] {
						continue
					}
					fwd, fwdOK := TransformForward(cur, transformed[k])
					if !fwdOK {
						ok = false
						break
					}
					cur = fwd
				}
			}
		}

		if !ok {
			dropped[i] = true
			transformed = append(transformed, Operation{})
			continue
		}

		transformed = append(transformed, cur)
	}

	out := make([]Operation, 0, len(batch))
	for i, op := range transformed {
		if !dropped[i] {
			out = append(out, op)
		}
	}
	return out
}
