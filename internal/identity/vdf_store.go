package identity

import (
	"fmt"
	"os"
	"strings"

	"github.com/andygrunwald/vdf"

	"steamswitch/internal/vdftext"
)

// VDFStore keeps the settings in the registry.vdf file that Linux and macOS
// clients use in place of the Windows registry.
type VDFStore struct {
	path       string
	candidates []string
}

// NewVDFStore reads and writes the registry file at path. InstallPath returns
// the first of candidates that is an existing directory.
func NewVDFStore(path string, candidates []string) *VDFStore {
	return &VDFStore{path: path, candidates: candidates}
}

func (s *VDFStore) Path() string {
	return s.path
}

func (s *VDFStore) InstallPath() (string, error) {
	for _, candidate := range s.candidates {
		if candidate == "" {
			continue
		}
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: steam directory not found in any known location", ErrStoreRead)
}

func (s *VDFStore) AutoLoginUser() (string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreOpen, err)
	}
	defer f.Close()

	doc, err := vdf.NewParser(f).Parse()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreRead, err)
	}

	section, ok := lookupSection(doc, "Registry", "HKCU", "Software", "Valve", "Steam")
	if !ok {
		return "", nil
	}
	for k, v := range section {
		if strings.EqualFold(k, "AutoLoginUser") {
			name, _ := v.(string)
			return name, nil
		}
	}
	return "", nil
}

func (s *VDFStore) SetAutoLoginUser(name string) error {
	return s.update(map[string]string{
		"AutoLoginUser":    name,
		"RememberPassword": "1",
	}, "AutoLoginUser", "RememberPassword")
}

func (s *VDFStore) ClearAutoLoginUser() error {
	return s.update(map[string]string{"AutoLoginUser": ""}, "AutoLoginUser")
}

func (s *VDFStore) update(values map[string]string, order ...string) error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	text := string(data)
	for _, key := range order {
		var ok bool
		text, ok = vdftext.SetBlockValue(text, "Steam", key, values[key])
		if !ok {
			return fmt.Errorf("%w: no Steam section in %s", ErrStoreWrite, s.path)
		}
	}
	if text == string(data) {
		return nil
	}
	if err := os.WriteFile(s.path, []byte(text), info.Mode().Perm()); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

func lookupSection(doc map[string]interface{}, path ...string) (map[string]interface{}, bool) {
	current := doc
	for _, name := range path {
		next, ok := childSection(current, name)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

func childSection(m map[string]interface{}, name string) (map[string]interface{}, bool) {
	for k, v := range m {
		if !strings.EqualFold(k, name) {
			continue
		}
		section, ok := v.(map[string]interface{})
		return section, ok
	}
	return nil, false
}
