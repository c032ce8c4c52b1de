package model

import (
	"fmt"
	"strings"
)

type PersonaMode string

const (
	PersonaOnline    PersonaMode = "online"
	PersonaInvisible PersonaMode = "invisible"
)

// StateDigit returns the client's numeric presence code for the mode.
func (m PersonaMode) StateDigit() string {
	if m == PersonaInvisible {
		return "7"
	}
	return "1"
}

func ParsePersonaMode(s string) (PersonaMode, error) {
	switch PersonaMode(strings.ToLower(strings.TrimSpace(s))) {
	case PersonaOnline:
		return PersonaOnline, nil
	case PersonaInvisible:
		return PersonaInvisible, nil
	default:
		return "", fmt.Errorf("invalid mode: %s", s)
	}
}

type Account struct {
	SteamID64   string  `json:"steam_id"`
	AccountName string  `json:"account_name"`
	PersonaName string  `json:"persona_name"`
	LastLoginAt *uint64 `json:"last_login_at,omitempty"`
	MostRecent  bool    `json:"most_recent"`
}

type AccountSnapshot struct {
	Accounts           []Account `json:"accounts"`
	CurrentAccountName string    `json:"current_account_name"`
}

type CopyableGame struct {
	AppID       string `json:"app_id"`
	DisplayName string `json:"name"`
}

// SwitchRequest targets an account for the next client launch. Mode and
// TargetSteamID64 are only needed to change the persona state.
type SwitchRequest struct {
	TargetUsername  string      `json:"username"`
	TargetSteamID64 string      `json:"steam_id,omitempty"`
	Mode            PersonaMode `json:"mode,omitempty"`
	RunElevated     bool        `json:"run_as_admin"`
	LaunchOptions   string      `json:"launch_options,omitempty"`
}

type ProfileInfo struct {
	AvatarURL     string `json:"avatar_url,omitempty"`
	DisplayName   string `json:"display_name,omitempty"`
	VACBanned     bool   `json:"vac_banned"`
	TradeBanState string `json:"trade_ban_state"`
}

type BanInfo struct {
	SteamID          string `json:"SteamId"`
	CommunityBanned  bool   `json:"CommunityBanned"`
	VACBanned        bool   `json:"VACBanned"`
	NumberOfVACBans  uint32 `json:"NumberOfVACBans"`
	DaysSinceLastBan uint32 `json:"DaysSinceLastBan"`
	NumberOfGameBans uint32 `json:"NumberOfGameBans"`
	EconomyBan       string `json:"EconomyBan"`
}
