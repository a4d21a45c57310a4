package adapter

// Translate converts record directly from one representation to another by
// chaining the source adapter's ToCanonical with the target adapter's
// FromCanonical. The caller never handles the canonical form.
//
// The residue reported by the source adapter is returned so callers (the
// morphing engine) can preserve it; Translate itself discards nothing.
func (r *Registry) Translate(record map[string]any, fromRepr, toRepr string) (map[string]any, Residue, error) {
	from, err := r.Get(fromRepr)
	if err != nil {
		return nil, nil, err
	}
	to, err := r.Get(toRepr)
	if err != nil {
		return nil, nil, err
	}
	a, residue := from.ToCanonical(record)
	return to.FromCanonical(a), residue, nil
}
