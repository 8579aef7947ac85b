package generic

// MapValues collects the values of the given maps into a single slice, in
// unspecified order.
func MapValues[K comparable, V any](maps ...map[K]V) []V {
	var size int
	for _, m := range maps {
		size += len(m)
	}

	values := make([]V, 0, size)

	for _, m := range maps {
		for _, v := range m {
			values = append(values, v)
		}
	}

	return values
}

// MapCopy returns a shallow copy of src. Mutating the copy never affects
// the source.
func MapCopy[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}

	return dst
}
