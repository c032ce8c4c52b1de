package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"steamswitch/internal/logging"
	"steamswitch/internal/model"
	"steamswitch/internal/steamid"
)

// Service is the set of account operations the API exposes.
type Service interface {
	Snapshot(ctx context.Context) (model.AccountSnapshot, error)
	CurrentAccount(ctx context.Context) (string, error)
	SwitchAccount(ctx context.Context, req model.SwitchRequest) error
	AddAccount(ctx context.Context, elevated bool, launchOptions string) error
	ForgetAccount(ctx context.Context, steamID string) error
	OpenUserdata(ctx context.Context, steamID string) error
	CopyableGames(ctx context.Context, fromSteamID, toSteamID string) ([]model.CopyableGame, error)
	CopyGameSettings(ctx context.Context, fromSteamID, toSteamID, appID string) error
	ProfileInfo(ctx context.Context, steamID string) (*model.ProfileInfo, error)
	PlayerBans(ctx context.Context, steamIDs []string) ([]model.BanInfo, error)
	FriendCode(ctx context.Context, steamID string) (string, error)
	SteamPath(ctx context.Context) (string, error)
	SetSteamPath(ctx context.Context, path string) error
	APIKey(ctx context.Context) (string, error)
	SetAPIKey(ctx context.Context, key string) error
	WindowSize(ctx context.Context) (width, height float64, ok bool, err error)
	SetWindowSize(ctx context.Context, width, height float64) error
}

type APIServer struct {
	service Service
	daemon  DaemonController
	metrics *metrics
}

func New(service Service, daemonCtl DaemonController) *APIServer {
	return &APIServer{service: service, daemon: daemonCtl, metrics: newMetrics()}
}

func (s *APIServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(instrumentMiddleware(s.metrics))
	r.Use(corsMiddleware)
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) { methodNotAllowed(w) })
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleAccounts)
			r.Get("/current", s.handleCurrentAccount)
			r.Post("/switch", s.handleSwitch)
			r.Post("/add", s.handleAddAccount)
			r.Route("/{steamID}", func(r chi.Router) {
				r.Delete("/", s.handleForgetAccount)
				r.Post("/open-userdata", s.handleOpenUserdata)
				r.Get("/profile", s.handleProfile)
				r.Get("/friend-code", s.handleFriendCode)
			})
		})

		r.Post("/bans", s.handleBans)

		r.Get("/games/copyable", s.handleCopyableGames)
		r.Post("/games/copy", s.handleCopyGame)

		r.Get("/settings/api-key", s.handleGetAPIKey)
		r.Put("/settings/api-key", s.handleSetAPIKey)
		r.Get("/settings/steam-path", s.handleGetSteamPath)
		r.Put("/settings/steam-path", s.handleSetSteamPath)
		r.Get("/settings/window", s.handleGetWindow)
		r.Put("/settings/window", s.handleSetWindow)

		r.Get("/daemon/info", s.handleDaemonInfo)
		r.Post("/daemon/shutdown", s.handleDaemonShutdown)
	})
	return r
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleAccounts(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.Snapshot(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if snap.Accounts == nil {
		snap.Accounts = []model.Account{}
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *APIServer) handleCurrentAccount(w http.ResponseWriter, r *http.Request) {
	name, err := s.service.CurrentAccount(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account_name": name})
}

func (s *APIServer) handleSwitch(w http.ResponseWriter, r *http.Request) {
	var req model.SwitchRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.service.SwitchAccount(r.Context(), req); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunAsAdmin    bool   `json:"run_as_admin"`
		LaunchOptions string `json:"launch_options"`
	}
	if err := decodeJSONBody(r, &req, true); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.service.AddAccount(r.Context(), req.RunAsAdmin, req.LaunchOptions); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleForgetAccount(w http.ResponseWriter, r *http.Request) {
	if err := s.service.ForgetAccount(r.Context(), chi.URLParam(r, "steamID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleOpenUserdata(w http.ResponseWriter, r *http.Request) {
	if err := s.service.OpenUserdata(r.Context(), chi.URLParam(r, "steamID")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.ProfileInfo(r.Context(), chi.URLParam(r, "steamID"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*model.ProfileInfo{"profile": info})
}

func (s *APIServer) handleFriendCode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "steamID")
	code, err := s.service.FriendCode(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"friend_code": code,
		"profile_url": steamid.ProfileURL(id),
	})
}

func (s *APIServer) handleBans(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SteamIDs []string `json:"steam_ids"`
	}
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bans, err := s.service.PlayerBans(r.Context(), req.SteamIDs)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if bans == nil {
		bans = []model.BanInfo{}
	}
	writeJSON(w, http.StatusOK, map[string][]model.BanInfo{"players": bans})
}

func (s *APIServer) handleCopyableGames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	games, err := s.service.CopyableGames(r.Context(), strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to")))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if games == nil {
		games = []model.CopyableGame{}
	}
	writeJSON(w, http.StatusOK, map[string][]model.CopyableGame{"games": games})
}

func (s *APIServer) handleCopyGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromSteamID string `json:"from_steam_id"`
		ToSteamID   string `json:"to_steam_id"`
		AppID       string `json:"app_id"`
	}
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.service.CopyGameSettings(r.Context(), req.FromSteamID, req.ToSteamID, req.AppID); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleGetAPIKey(w http.ResponseWriter, r *http.Request) {
	key, err := s.service.APIKey(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"api_key": key})
}

func (s *APIServer) handleSetAPIKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		APIKey string `json:"api_key"`
	}
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.service.SetAPIKey(r.Context(), req.APIKey); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleGetSteamPath(w http.ResponseWriter, r *http.Request) {
	path, err := s.service.SteamPath(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *APIServer) handleSetSteamPath(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.service.SetSteamPath(r.Context(), req.Path); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type windowPayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (s *APIServer) handleGetWindow(w http.ResponseWriter, r *http.Request) {
	width, height, ok, err := s.service.WindowSize(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"window": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"window": windowPayload{Width: width, Height: height}})
}

func (s *APIServer) handleSetWindow(w http.ResponseWriter, r *http.Request) {
	var req windowPayload
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.service.SetWindowSize(r.Context(), req.Width, req.Height); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *APIServer) handleDaemonInfo(w http.ResponseWriter, r *http.Request) {
	if s.daemon == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("daemon control not configured"))
		return
	}
	writeJSON(w, http.StatusOK, s.daemon.Info())
}

func (s *APIServer) handleDaemonShutdown(w http.ResponseWriter, r *http.Request) {
	if s.daemon == nil {
		writeError(w, http.StatusServiceUnavailable, errors.New("daemon control not configured"))
		return
	}
	if err := s.daemon.Shutdown(); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "shutting_down"})
}

func (s *APIServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.Errorf(r.Context(), "%s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, err)
}

func decodeJSONBody(r *http.Request, dst interface{}, allowEmpty bool) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
