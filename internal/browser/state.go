package browser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// Cookie is the persisted form of a browser cookie.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
}

// State is everything needed to resume a game session: its cookies and the
// localStorage of the game origin, where the save lives.
type State struct {
	Cookies      []Cookie          `json:"cookies"`
	LocalStorage map[string]string `json:"local_storage"`
}

// Empty reports whether there is nothing worth restoring.
func (s *State) Empty() bool {
	return s == nil || (len(s.Cookies) == 0 && len(s.LocalStorage) == 0)
}

// LoadState reads a state file. A missing file yields (nil, nil).
func LoadState(file string) (*State, error) {
	data, err := os.ReadFile(file)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var state State
	if err = json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state file %s: %w", file, err)
	}
	log.Debugf("Loaded state file %s with %d cookies, localStorage keys %v", file, len(state.Cookies), StateKeys(data))
	return &state, nil
}

// SaveState writes the state atomically: a temp file in the same directory is
// renamed over the target.
func SaveState(file string, state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(file)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(file)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), file)
}

// StateKeys lists the localStorage keys recorded in a state file, for logging
// what a restore is about to bring back without decoding the whole document.
func StateKeys(data []byte) []string {
	keys := make([]string, 0)
	gjson.GetBytes(data, "local_storage").ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return keys
}
