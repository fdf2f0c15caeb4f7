package subst

// Values is the caller-supplied value table: an ordered list of strings
// addressed by placeholder index, so ${0} resolves to Values[0]. The engine
// only ever reads it; the caller must keep it unchanged for the duration of a
// render session (from Start until End).
//
// Any index outside the table resolves to the empty string. There is no way
// to make a missing value an error: templates keep rendering even with a
// malformed value table.
type Values []string

// lookup resolves a placeholder index, substituting the empty string for
// anything out of range. An index of -1 is the parser's marker for a digit
// run that overflowed int.
func (v Values) lookup(i int) string {
	if i < 0 || i >= len(v) {
		return ""
	}
	return v[i]
}
