package mapslicehelp

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func OrderedMapKeys[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []K {
	l := make([]K, m.Len())
	i := 0
	for p := m.Oldest(); p != nil; p = p.Next() {
		l[i] = p.Key
		i++
	}
	return l
}

// SetIfAbsent stores v under k only when k is not yet present. It reports whether v was stored.
func SetIfAbsent[K comparable, V any](m *orderedmap.OrderedMap[K, V], k K, v V) bool {
	if _, present := m.Get(k); present {
		return false
	}
	m.Set(k, v)
	return true
}
