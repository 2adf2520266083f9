package project

// DeepMerge applies patch on top of base and returns the result without modifying either.
//
// Objects merge key by key, recursively. Scalars and arrays in the patch replace the base value
// wholesale. A null in the patch removes the key.
func DeepMerge(base, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, pv := range patch {
		if pv == nil {
			delete(out, k)
			continue
		}
		patchObj, patchIsObj := pv.(map[string]interface{})
		baseObj, baseIsObj := out[k].(map[string]interface{})
		switch {
		case patchIsObj && baseIsObj:
			out[k] = DeepMerge(baseObj, patchObj)
		case patchIsObj:
			out[k] = DeepMerge(nil, patchObj)
		default:
			out[k] = pv
		}
	}
	return out
}
