package model

import "math"

type Preferences struct {
	SteamAPIKey       string   `yaml:"steam_api_key" json:"steam_api_key"`
	SteamPathOverride string   `yaml:"steam_path_override" json:"steam_path_override"`
	WindowWidth       *float64 `yaml:"window_width,omitempty" json:"window_width,omitempty"`
	WindowHeight      *float64 `yaml:"window_height,omitempty" json:"window_height,omitempty"`
}

func DefaultPreferences() Preferences {
	return Preferences{}
}

// WindowSize reports the remembered window size when both dimensions are usable.
func (p Preferences) WindowSize() (float64, float64, bool) {
	if p.WindowWidth == nil || p.WindowHeight == nil {
		return 0, 0, false
	}
	w, h := *p.WindowWidth, *p.WindowHeight
	if !ValidWindowSize(w, h) {
		return 0, 0, false
	}
	return w, h, true
}

func ValidWindowSize(width, height float64) bool {
	if math.IsNaN(width) || math.IsInf(width, 0) || math.IsNaN(height) || math.IsInf(height, 0) {
		return false
	}
	return width > 0 && height > 0
}
