package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/sanity-io/litter"
	psnet "github.com/shirou/gopsutil/v3/net"
	psprocess "github.com/shirou/gopsutil/v3/process"

	"steamswitch/internal/model"
)

const defaultBaseURL = "http://127.0.0.1:7777"

type globalOptions struct {
	BaseURL string `long:"base-url" env:"STEAMSWITCH_BASE_URL" default:"http://127.0.0.1:7777" description:"daemon base URL"`
	Dump    bool   `long:"dump" description:"print responses as Go values instead of JSON"`
}

type app struct {
	opts   globalOptions
	client *apiClient
	out    io.Writer
}

func (a *app) api() *apiClient {
	if a.client == nil {
		base := strings.TrimRight(strings.TrimSpace(a.opts.BaseURL), "/")
		if base == "" {
			base = defaultBaseURL
		}
		a.client = &apiClient{baseURL: base, http: &http.Client{Timeout: 30 * time.Second}}
	}
	return a.client
}

func (a *app) print(v interface{}) error {
	if a.opts.Dump {
		_, err := fmt.Fprintln(a.out, litter.Sdump(v))
		return err
	}
	return printJSON(a.out, v)
}

func main() {
	a := &app{out: os.Stdout}
	err := run(a, os.Args[1:])
	var ferr *flags.Error
	if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
		fmt.Println(ferr.Message)
		return
	}
	must(err)
}

func run(a *app, args []string) error {
	parser, err := newParser(a)
	if err != nil {
		return err
	}
	_, err = parser.ParseArgs(args)
	return err
}

func newParser(a *app) (*flags.Parser, error) {
	parser := flags.NewParser(&a.opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "steamswitch"

	commands := []struct {
		name, short string
		data        interface{}
	}{
		{"accounts", "List remembered accounts", &accountsCommand{app: a}},
		{"current", "Show the account the client will log in as", &currentCommand{app: a}},
		{"switch", "Switch the client to another account", &switchCommand{app: a}},
		{"add", "Restart the client on its login screen", &addCommand{app: a}},
		{"forget", "Remove an account from the login list", &forgetCommand{app: a}},
		{"open-userdata", "Open an account's userdata folder", &openUserdataCommand{app: a}},
		{"profile", "Show an account's public profile", &profileCommand{app: a}},
		{"friend-code", "Show an account's friend code", &friendCodeCommand{app: a}},
		{"bans", "Look up ban status for accounts", &bansCommand{app: a}},
		{"games", "List games whose settings can be copied", &gamesCommand{app: a}},
		{"copy", "Copy one game's settings between accounts", &copyCommand{app: a}},
	}
	for _, c := range commands {
		if _, err := parser.AddCommand(c.name, c.short, c.short, c.data); err != nil {
			return nil, err
		}
	}

	settings, err := parser.AddCommand("settings", "Show or change preferences", "Show or change preferences", &struct{}{})
	if err != nil {
		return nil, err
	}
	for _, c := range []struct {
		name, short string
		data        interface{}
	}{
		{"api-key", "Show or set the Web API key", &apiKeyCommand{app: a}},
		{"steam-path", "Show or set the client install path override", &steamPathCommand{app: a}},
		{"window", "Show or set the saved window size", &windowCommand{app: a}},
	} {
		if _, err := settings.AddCommand(c.name, c.short, c.short, c.data); err != nil {
			return nil, err
		}
	}

	daemon, err := parser.AddCommand("daemon", "Control the background daemon", "Control the background daemon", &struct{}{})
	if err != nil {
		return nil, err
	}
	for _, c := range []struct {
		name, short string
		data        interface{}
	}{
		{"info", "Show daemon details", &daemonInfoCommand{app: a}},
		{"start", "Start the daemon in the background", &daemonStartCommand{app: a}},
		{"stop", "Stop the daemon", &daemonStopCommand{app: a}},
	} {
		if _, err := daemon.AddCommand(c.name, c.short, c.short, c.data); err != nil {
			return nil, err
		}
	}
	return parser, nil
}

type steamIDArg struct {
	SteamID string `positional-arg-name:"steam-id" description:"17-digit SteamID64"`
}

type accountsCommand struct{ app *app }

func (c *accountsCommand) Execute([]string) error {
	var out model.AccountSnapshot
	if err := c.app.api().get("/v1/accounts", &out); err != nil {
		return err
	}
	return c.app.print(out)
}

type currentCommand struct{ app *app }

func (c *currentCommand) Execute([]string) error {
	var out map[string]string
	if err := c.app.api().get("/v1/accounts/current", &out); err != nil {
		return err
	}
	return c.app.print(out)
}

type switchCommand struct {
	app           *app
	SteamID       string `long:"steam-id" description:"target SteamID64, needed with --mode"`
	Mode          string `long:"mode" choice:"online" choice:"invisible" description:"persona state to log in with"`
	Admin         bool   `long:"admin" description:"launch the client elevated"`
	LaunchOptions string `long:"launch-options" description:"extra client command-line arguments"`
	Args          struct {
		Username string `positional-arg-name:"username" description:"account name to log in as"`
	} `positional-args:"yes" required:"yes"`
}

func (c *switchCommand) Execute([]string) error {
	req := model.SwitchRequest{
		TargetUsername:  c.Args.Username,
		TargetSteamID64: strings.TrimSpace(c.SteamID),
		Mode:            model.PersonaMode(c.Mode),
		RunElevated:     c.Admin,
		LaunchOptions:   c.LaunchOptions,
	}
	if req.Mode != "" && req.TargetSteamID64 == "" {
		return fmt.Errorf("--steam-id is required with --mode")
	}
	var out map[string]string
	if err := c.app.api().post("/v1/accounts/switch", req, &out); err != nil {
		return err
	}
	return c.app.print(out)
}

type addCommand struct {
	app           *app
	Admin         bool   `long:"admin" description:"launch the client elevated"`
	LaunchOptions string `long:"launch-options" description:"extra client command-line arguments"`
}

func (c *addCommand) Execute([]string) error {
	payload := map[string]interface{}{"run_as_admin": c.Admin, "launch_options": c.LaunchOptions}
	var out map[string]string
	if err := c.app.api().post("/v1/accounts/add", payload, &out); err != nil {
		return err
	}
	return c.app.print(out)
}

type forgetCommand struct {
	app  *app
	Args steamIDArg `positional-args:"yes" required:"yes"`
}

func (c *forgetCommand) Execute([]string) error {
	var out map[string]string
	if err := c.app.api().delete(accountPath(c.Args.SteamID, ""), &out); err != nil {
		return err
	}
	return c.app.print(out)
}

type openUserdataCommand struct {
	app  *app
	Args steamIDArg `positional-args:"yes" required:"yes"`
}

func (c *openUserdataCommand) Execute([]string) error {
	var out map[string]string
	if err := c.app.api().post(accountPath(c.Args.SteamID, "open-userdata"), map[string]string{}, &out); err != nil {
		return err
	}
	return c.app.print(out)
}

type profileCommand struct {
	app  *app
	Args steamIDArg `positional-args:"yes" required:"yes"`
}

func (c *profileCommand) Execute([]string) error {
	var out struct {
		Profile *model.ProfileInfo `json:"profile"`
	}
	if err := c.app.api().get(accountPath(c.Args.SteamID, "profile"), &out); err != nil {
		return err
	}
	if out.Profile == nil {
		return fmt.Errorf("no profile data available for %s", c.Args.SteamID)
	}
	return c.app.print(out.Profile)
}

type friendCodeCommand struct {
	app  *app
	Args steamIDArg `positional-args:"yes" required:"yes"`
}

func (c *friendCodeCommand) Execute([]string) error {
	var out map[string]string
	if err := c.app.api().get(accountPath(c.Args.SteamID, "friend-code"), &out); err != nil {
		return err
	}
	return c.app.print(out)
}

type bansCommand struct {
	app  *app
	Args struct {
		SteamIDs []string `positional-arg-name:"steam-id" description:"SteamID64 values to look up"`
	} `positional-args:"yes" required:"yes"`
}

func (c *bansCommand) Execute([]string) error {
	var out struct {
		Players []model.BanInfo `json:"players"`
	}
	if err := c.app.api().post("/v1/bans", map[string][]string{"steam_ids": c.Args.SteamIDs}, &out); err != nil {
		return err
	}
	return c.app.print(out.Players)
}

type gamesCommand struct {
	app  *app
	From string `long:"from" required:"yes" description:"source SteamID64"`
	To   string `long:"to" required:"yes" description:"destination SteamID64"`
}

func (c *gamesCommand) Execute([]string) error {
	q := url.Values{}
	q.Set("from", c.From)
	q.Set("to", c.To)
	var out struct {
		Games []model.CopyableGame `json:"games"`
	}
	if err := c.app.api().get("/v1/games/copyable?"+q.Encode(), &out); err != nil {
		return err
	}
	return c.app.print(out.Games)
}

type copyCommand struct {
	app   *app
	From  string `long:"from" required:"yes" description:"source SteamID64"`
	To    string `long:"to" required:"yes" description:"destination SteamID64"`
	AppID string `long:"app" required:"yes" description:"numeric app id"`
}

func (c *copyCommand) Execute([]string) error {
	payload := map[string]string{"from_steam_id": c.From, "to_steam_id": c.To, "app_id": c.AppID}
	var out map[string]string
	if err := c.app.api().post("/v1/games/copy", payload, &out); err != nil {
		return err
	}
	return c.app.print(out)
}

type apiKeyCommand struct {
	app  *app
	Args struct {
		Key string `positional-arg-name:"key" description:"new key; omit to show the current one"`
	} `positional-args:"yes"`
}

func (c *apiKeyCommand) Execute([]string) error {
	var out map[string]string
	if c.Args.Key == "" {
		if err := c.app.api().get("/v1/settings/api-key", &out); err != nil {
			return err
		}
		return c.app.print(out)
	}
	if err := c.app.api().put("/v1/settings/api-key", map[string]string{"api_key": c.Args.Key}, &out); err != nil {
		return err
	}
	return c.app.print(out)
}

type steamPathCommand struct {
	app   *app
	Clear bool `long:"clear" description:"remove the override and use detection again"`
	Args  struct {
		Path string `positional-arg-name:"path" description:"client install directory; omit to show the current one"`
	} `positional-args:"yes"`
}

func (c *steamPathCommand) Execute([]string) error {
	var out map[string]string
	if c.Args.Path == "" && !c.Clear {
		if err := c.app.api().get("/v1/settings/steam-path", &out); err != nil {
			return err
		}
		return c.app.print(out)
	}
	if err := c.app.api().put("/v1/settings/steam-path", map[string]string{"path": c.Args.Path}, &out); err != nil {
		return err
	}
	return c.app.print(out)
}

type windowCommand struct {
	app    *app
	Width  float64 `long:"width" description:"window width"`
	Height float64 `long:"height" description:"window height"`
}

func (c *windowCommand) Execute([]string) error {
	if c.Width == 0 && c.Height == 0 {
		var out map[string]interface{}
		if err := c.app.api().get("/v1/settings/window", &out); err != nil {
			return err
		}
		return c.app.print(out)
	}
	var out map[string]string
	payload := map[string]float64{"width": c.Width, "height": c.Height}
	if err := c.app.api().put("/v1/settings/window", payload, &out); err != nil {
		return err
	}
	return c.app.print(out)
}

type daemonInfoCommand struct{ app *app }

func (c *daemonInfoCommand) Execute([]string) error {
	var out map[string]interface{}
	if err := c.app.api().get("/v1/daemon/info", &out); err != nil {
		return err
	}
	return c.app.print(out)
}

type daemonStartCommand struct {
	app        *app
	Addr       string        `long:"addr" description:"listen address (default: taken from --base-url)"`
	Binary     string        `long:"binary" description:"path to steamswitchd (default: next to this binary, then PATH)"`
	Wait       time.Duration `long:"wait" default:"8s" description:"health-check timeout"`
	SkipHealth bool          `long:"skip-health-check" description:"skip /v1/health polling"`
}

func (c *daemonStartCommand) Execute([]string) error {
	addr := c.Addr
	if addr == "" {
		addr = hostPortFromBaseURL(c.app.api().baseURL)
	}
	if err := startDaemonProcess(c.Binary, addr); err != nil {
		return err
	}
	if !c.SkipHealth {
		if err := waitForHealth(addr, c.Wait); err != nil {
			return err
		}
	}
	return c.app.print(map[string]interface{}{"status": "started", "addr": addr})
}

type daemonStopCommand struct {
	app          *app
	Addr         string `long:"addr" description:"daemon address (default: taken from --base-url)"`
	NoAPI        bool   `long:"no-api" description:"skip the shutdown API and kill the listener directly"`
	KillListener bool   `long:"kill-listener" description:"fall back to killing the process listening on the port"`
}

func (c *daemonStopCommand) Execute([]string) error {
	addr := c.Addr
	if addr == "" {
		addr = hostPortFromBaseURL(c.app.api().baseURL)
	}
	if !c.NoAPI {
		var out map[string]interface{}
		err := c.app.api().post("/v1/daemon/shutdown", map[string]string{}, &out)
		if err == nil {
			out["mode"] = "api"
			return c.app.print(out)
		}
		if !c.KillListener {
			return err
		}
	}
	port, err := portFromAddr(addr)
	if err != nil {
		return err
	}
	killed, err := stopDaemonByPort(port)
	if err != nil {
		return err
	}
	return c.app.print(map[string]interface{}{
		"status":      "stopped",
		"addr":        addr,
		"port":        port,
		"mode":        "local-kill",
		"killed_pids": killed,
	})
}

func accountPath(steamID, action string) string {
	p := "/v1/accounts/" + url.PathEscape(strings.TrimSpace(steamID))
	if action != "" {
		p += "/" + action
	}
	return p
}

func hostPortFromBaseURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return "127.0.0.1:7777"
	}
	host := u.Hostname()
	port := u.Port()
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "7777"
	}
	return host + ":" + port
}

func portFromAddr(addr string) (int, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 || idx >= len(addr)-1 {
		return 0, fmt.Errorf("invalid addr: %s", addr)
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("invalid addr port: %w", err)
	}
	return port, nil
}

// stopDaemonByPort kills every process listening on the TCP port.
func stopDaemonByPort(port int) ([]int32, error) {
	conns, err := psnet.Connections("tcp")
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	seen := map[int32]struct{}{}
	var pids []int32
	for _, conn := range conns {
		if conn.Status != "LISTEN" || int(conn.Laddr.Port) != port || conn.Pid <= 0 {
			continue
		}
		if _, ok := seen[conn.Pid]; ok {
			continue
		}
		seen[conn.Pid] = struct{}{}
		pids = append(pids, conn.Pid)
	}
	for _, pid := range pids {
		p, err := psprocess.NewProcess(pid)
		if err != nil {
			continue
		}
		if err := p.Kill(); err != nil {
			return pids, fmt.Errorf("kill pid %d: %w", pid, err)
		}
	}
	return pids, nil
}

func daemonBinaryName() string {
	if runtime.GOOS == "windows" {
		return "steamswitchd.exe"
	}
	return "steamswitchd"
}

func startDaemonProcess(binary, addr string) error {
	if strings.TrimSpace(binary) == "" {
		binary = daemonBinaryName()
		if exe, err := os.Executable(); err == nil {
			candidate := filepath.Join(filepath.Dir(exe), binary)
			if _, err := os.Stat(candidate); err == nil {
				binary = candidate
			}
		}
		if !filepath.IsAbs(binary) {
			found, err := exec.LookPath(binary)
			if err != nil {
				return fmt.Errorf("locate %s: %w", binary, err)
			}
			binary = found
		}
	}
	cmd := exec.Command(binary, "--addr", addr)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	return cmd.Process.Release()
}

func waitForHealth(addr string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	host := addr
	if strings.HasPrefix(host, "0.0.0.0:") || strings.HasPrefix(host, "[::]:") {
		p := host[strings.LastIndex(host, ":")+1:]
		host = "127.0.0.1:" + p
	}
	healthURL := "http://" + host + "/v1/health"
	client := &http.Client{Timeout: 1200 * time.Millisecond}
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		resp, err := client.Get(healthURL)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("health returned status %d", resp.StatusCode)
		} else {
			lastErr = err
		}
		time.Sleep(400 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not become healthy in %s: %v", timeout.String(), lastErr)
}

type apiClient struct {
	baseURL string
	http    *http.Client
}

func (c *apiClient) get(path string, out interface{}) error {
	return c.do(http.MethodGet, path, nil, out)
}

func (c *apiClient) post(path string, payload interface{}, out interface{}) error {
	return c.do(http.MethodPost, path, payload, out)
}

func (c *apiClient) put(path string, payload interface{}, out interface{}) error {
	return c.do(http.MethodPut, path, payload, out)
}

func (c *apiClient) delete(path string, out interface{}) error {
	return c.do(http.MethodDelete, path, nil, out)
}

func (c *apiClient) do(method, path string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			return fmt.Errorf("http %d: %s", resp.StatusCode, payload.Error)
		}
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
