package quotes

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const recentKey = "recently_shown_indices"

// state is the decoded state file. Keys other than recently_shown_indices
// are carried through untouched.
type state struct {
	raw    map[string]json.RawMessage
	recent []int
}

// readState never fails: a missing or corrupt file is an empty history.
func readState(path string) state {
	st := state{raw: map[string]json.RawMessage{}}
	b, err := os.ReadFile(path)
	if err != nil {
		return st
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil || raw == nil {
		return st
	}
	st.raw = raw
	if v, ok := raw[recentKey]; ok {
		var recent []int
		if json.Unmarshal(v, &recent) == nil {
			st.recent = recent
		}
	}
	return st
}

// push records idx and keeps the last n entries.
func (s *state) push(idx, n int) {
	s.recent = append(s.recent, idx)
	if n > 0 && len(s.recent) > n {
		s.recent = append([]int(nil), s.recent[len(s.recent)-n:]...)
	}
}

func writeState(path string, s state) error {
	recent := s.recent
	if recent == nil {
		recent = []int{}
	}
	v, err := json.Marshal(recent)
	if err != nil {
		return err
	}
	raw := make(map[string]json.RawMessage, len(s.raw)+1)
	for k, val := range s.raw {
		raw[k] = val
	}
	raw[recentKey] = v

	b, err := json.MarshalIndent(raw, "", "    ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
