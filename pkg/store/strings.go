package store

import "segdb/pkg/types"

// PutString stores a string value.
func (s *Store) PutString(key, value string) error {
	return s.Put([]byte(key), []byte(value))
}

// GetString reads a value as a string.
func (s *Store) GetString(key string) (string, bool, error) {
	e, ok, err := s.Get(types.Key(key))
	if err != nil || !ok {
		return "", ok, err
	}
	return string(e.Value), true, nil
}

func (s *Store) DeleteString(key string) error {
	return s.Delete([]byte(key))
}
