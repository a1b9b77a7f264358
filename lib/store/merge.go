package store

// Merge returns a new object holding the top-level fields of base overwritten
// by the fields of patch. Fields only present in base are kept. Nested objects
// are replaced, not merged. If base is not an object it counts as empty.
//
// Neither base nor patch is modified.
func Merge(base Value, patch Object) Object {
	baseObj, _ := base.(Object)
	merged := make(Object, len(baseObj)+len(patch))
	for k, v := range baseObj {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}
