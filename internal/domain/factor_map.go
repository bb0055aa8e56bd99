package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// FactorMap is an ordered mapping from factor name to value. Internally it is
// a plain map; at serialization boundaries it always renders as a key-sorted
// JSON object so that persisted and API representations are deterministic.
type FactorMap map[string]float64

// Factors returns the factor names in ascending order
func (m FactorMap) Factors() []string {
	factors := make([]string, 0, len(m))
	for factor := range m {
		factors = append(factors, factor)
	}
	sort.Strings(factors)
	return factors
}

// Clone returns a copy of the map
func (m FactorMap) Clone() FactorMap {
	clone := make(FactorMap, len(m))
	for factor, value := range m {
		clone[factor] = value
	}
	return clone
}

// MarshalJSON renders the map as a key-sorted JSON object
func (m FactorMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, factor := range m.Factors() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(factor)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(m[factor])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal factor %q: %w", factor, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object into the map
func (m *FactorMap) UnmarshalJSON(data []byte) error {
	raw := make(map[string]float64)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = raw
	return nil
}
