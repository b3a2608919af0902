package social

// Small helpers for the id sets held on users and books. Sets are slices
// rather than maps so that they keep insertion order, which is the order
// the views return them in.

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// addID appends id unless it is already present.
func addID(ids []string, id string) []string {
	if contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// removeID returns ids without any occurrence of id.
func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
