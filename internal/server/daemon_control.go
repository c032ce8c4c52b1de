package server

type DaemonInfo struct {
	PID             int    `json:"pid"`
	Addr            string `json:"addr"`
	PreferencesPath string `json:"preferences_path,omitempty"`
	LogPath         string `json:"log_path,omitempty"`
}

type DaemonController interface {
	Info() DaemonInfo
	Shutdown() error
}
