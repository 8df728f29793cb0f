package main

import (
	"context"
	"crypto/tls"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"servopi/calibration"
)

//go:embed web
var embeddedFiles embed.FS

// blinkTimes and blinkPeriod shape the led_blink preset.
var (
	blinkTimes  = 3
	blinkPeriod = 600 * time.Millisecond
)

// sweepAngles is the path the sweep preset follows.
var sweepAngles = []float64{0, 45, 90, 135, 180, 90}

var (
	errNotFound   = errors.New("not found")
	errUserExists = errors.New("user exists")
)

// Server holds the daemon's runtime state: hardware controllers, sessions
// and the websocket hub.
type Server struct {
	cfgMgr   *ConfigManager
	sessions *SessionManager
	servo    *Servo
	led      *LED           // nil when disabled
	motion   *MotionMonitor // nil when disabled
	events   *EventLogger
	log      *slog.Logger
	hub      *Hub
	alerts   []AlertHandler
}

// NewServer wires controllers built by the caller into an HTTP server.
// led may be nil.  A PIR monitor is created when the config enables one.
func NewServer(cfgMgr *ConfigManager, servo *Servo, led *LED, logger *slog.Logger) *Server {
	cfg := cfgMgr.Get()
	s := &Server{
		cfgMgr:   cfgMgr,
		sessions: NewSessionManager(),
		servo:    servo,
		led:      led,
		events:   NewEventLogger(cfg.LogFile),
		log:      logger,
		hub:      NewHub(logger, 0),
		alerts:   initAlertHandlers(cfg.Alerts),
	}
	if cfg.PIR.Enabled {
		s.motion = NewMotionMonitor(cfg.PIR, readPin, s.onMotion)
	}
	return s
}

// Handler returns the daemon's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/login", s.handleLogin)
	mux.HandleFunc("/api/logout", s.handleLogout)
	mux.HandleFunc("/api/status", s.withAuth(s.handleStatus))
	mux.HandleFunc("/api/servo", s.withAuth(s.handleServo))
	mux.HandleFunc("/api/servo/duty", s.withAuth(s.handleServoDuty))
	mux.HandleFunc("/api/led", s.withAuth(s.handleLED))
	mux.HandleFunc("/api/preset/", s.withAuth(s.handlePreset))
	mux.HandleFunc("/api/calibration", s.withAuth(s.handleCalibration))
	mux.HandleFunc("/api/calibration/", s.withAuth(s.handleCalibrationPoint))
	mux.HandleFunc("/api/interpolate", s.withAuth(s.handleInterpolate))
	mux.HandleFunc("/api/users", s.withAuth(s.handleUsers))
	mux.HandleFunc("/api/users/", s.withAuth(s.handleUserByName))
	mux.HandleFunc("/api/logs", s.withAuth(s.handleLogs))
	mux.HandleFunc("/ws", s.withAuth(s.handleWS))

	static, err := fs.Sub(embeddedFiles, "web")
	if err != nil {
		panic(err)
	}
	mux.Handle("/", http.FileServer(http.FS(static)))
	return mux
}

// Start runs the HTTP server and background loops until ctx is canceled.
// TLS is used when both cert_file and key_file are configured.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.cfgMgr.Get()
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)

	go s.hub.Run(ctx)
	go s.sessions.RunPurge(ctx, time.Hour)
	if s.motion != nil {
		if err := configureInput(cfg.PIR.Pin); err != nil {
			return fmt.Errorf("pir input: %w", err)
		}
		go s.motion.Run(ctx)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.CertFile != "" {
			s.log.Info("listening", "addr", "https://0.0.0.0"+addr)
			err = srv.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			s.log.Info("listening", "addr", "http://0.0.0.0"+addr)
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// withAuth wraps handlers that require a valid session.  If the request
// contains a valid "session" cookie, it calls the underlying handler with
// the user; otherwise it responds with 401.
func (s *Server) withAuth(handler func(http.ResponseWriter, *http.Request, User)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("session")
		if err != nil {
			http.Error(w, "unauthenticated", http.StatusUnauthorized)
			return
		}
		sess, ok := s.sessions.Get(cookie.Value)
		if !ok {
			http.Error(w, "session expired", http.StatusUnauthorized)
			return
		}
		user, _ := s.cfgMgr.FindUser(sess.Username)
		if user.Username == "" {
			http.Error(w, "unknown user", http.StatusUnauthorized)
			return
		}
		handler(w, r, user)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// reply writes the {"success","message",...} shape used by control routes.
func reply(w http.ResponseWriter, status int, message string, extra map[string]any) {
	body := map[string]any{"success": status < 400, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

// handleLogin authenticates a user and sets a session cookie.  Expected JSON:
// {"username":"...","password":"..."}
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var creds struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	user, err := s.cfgMgr.Authenticate(creds.Username, creds.Password)
	if err != nil {
		s.events.Log("failed login for %q", creds.Username)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	sessID, sess, err := s.sessions.Create(user.Username, sessionTTL)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    sessID,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
		Expires:  sess.Expires,
	})
	s.events.Log("login %s", user.Username)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "admin": user.Admin})
}

// handleLogout deletes the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if cookie, err := r.Cookie("session"); err == nil {
		if sess, ok := s.sessions.Get(cookie.Value); ok {
			s.events.Log("logout %s", sess.Username)
		}
		s.sessions.Delete(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		Expires:  time.Unix(0, 0),
	})
	w.WriteHeader(http.StatusNoContent)
}

// statusResponse is returned by /api/status and sent as state_init.
type statusResponse struct {
	ServoStatus
	LEDPin            int           `json:"led_pin"`
	LEDEnabled        bool          `json:"led_enabled"`
	LEDBrightness     int           `json:"led_brightness"`
	Motion            *MotionStatus `json:"motion,omitempty"`
	CalibrationPoints int           `json:"calibration_points"`
}

func (s *Server) status() statusResponse {
	st := statusResponse{
		ServoStatus:       s.servo.Status(),
		CalibrationPoints: s.servo.Table().Len(),
	}
	if s.led != nil {
		st.LEDEnabled = true
		st.LEDPin = s.led.Pin()
		st.LEDBrightness = s.led.Brightness()
	} else {
		st.LEDPin = s.cfgMgr.Get().LED.Pin
	}
	if s.motion != nil {
		m := s.motion.Status()
		st.Motion = &m
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, user User) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

// handleServo moves the servo.  Body JSON: {"angle":<deg>}; a missing angle
// centers it.
func (s *Server) handleServo(w http.ResponseWriter, r *http.Request, user User) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Angle *float64 `json:"angle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reply(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	angle := 90.0
	if req.Angle != nil {
		angle = *req.Angle
	}
	st, err := s.moveServo(r.Context(), angle, user)
	if err != nil {
		s.replyServoError(w, err)
		return
	}
	reply(w, http.StatusOK, fmt.Sprintf("servo moved to %g°", angle), map[string]any{
		"angle":      st.Angle,
		"duty_cycle": st.Duty,
		"pulse_ms":   st.PulseMs,
	})
}

func (s *Server) moveServo(ctx context.Context, angle float64, user User) (ServoStatus, error) {
	st, err := s.servo.SetAngle(ctx, angle)
	if err != nil {
		return st, err
	}
	s.servoMoved(st, user)
	return st, nil
}

func (s *Server) servoMoved(st ServoStatus, user User) {
	s.events.Log("servo %g° duty %.2f%% by %s", st.Angle, st.Duty, user.Username)
	s.hub.Broadcast(msgServoMoved, st)
}

// handleServoDuty drives a raw duty cycle so an admin can find the value
// that reaches an angle before storing it.  Body JSON: {"duty":<percent>}.
func (s *Server) handleServoDuty(w http.ResponseWriter, r *http.Request, user User) {
	if !user.Admin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Duty *float64 `json:"duty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Duty == nil {
		reply(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	duty := *req.Duty
	if err := s.cfgMgr.Get().Limits().CheckValue(duty); err != nil {
		reply(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err := s.servo.ApplyDuty(r.Context(), duty); err != nil {
		if errors.Is(err, calibration.ErrInvalidPoint) {
			reply(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
		s.log.Error("servo duty failed", "duty", duty, "error", err)
		reply(w, http.StatusInternalServerError, "error: "+err.Error(), nil)
		return
	}
	s.events.Log("servo test duty %.2f%% by %s", duty, user.Username)
	reply(w, http.StatusOK, fmt.Sprintf("servo driven at %.2f%% duty", duty), map[string]any{
		"duty_cycle": duty,
		"pulse_ms":   calibration.DutyToPulseWidth(duty, s.servo.Adapter().FrequencyHz),
	})
}

func (s *Server) replyServoError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrAngleRange) {
		reply(w, http.StatusBadRequest, "angle must be between 0 and 180", nil)
		return
	}
	s.log.Error("servo move failed", "error", err)
	reply(w, http.StatusInternalServerError, "error: "+err.Error(), nil)
}

// handleLED sets LED brightness.  Body JSON: {"brightness":0..100}, or the
// older on/off form {"state":true}.
func (s *Server) handleLED(w http.ResponseWriter, r *http.Request, user User) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.led == nil {
		reply(w, http.StatusServiceUnavailable, "LED is disabled", nil)
		return
	}
	var req struct {
		Brightness *int  `json:"brightness"`
		State      *bool `json:"state"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		reply(w, http.StatusBadRequest, "invalid JSON", nil)
		return
	}
	var b int
	switch {
	case req.State != nil:
		if *req.State {
			b = 100
		}
	case req.Brightness != nil:
		b = *req.Brightness
	}
	if b < 0 || b > 100 {
		reply(w, http.StatusBadRequest, "brightness must be between 0 and 100", nil)
		return
	}
	b, err := s.setLED(b, user)
	if err != nil {
		reply(w, http.StatusInternalServerError, "error: "+err.Error(), nil)
		return
	}
	reply(w, http.StatusOK, fmt.Sprintf("LED brightness set to %d%%", b), map[string]any{"led_brightness": b})
}

func (s *Server) setLED(b int, user User) (int, error) {
	b, err := s.led.SetBrightness(b)
	if err != nil {
		return b, err
	}
	s.events.Log("led %d%% by %s", b, user.Username)
	s.hub.Broadcast(msgLEDChanged, map[string]int{"led_brightness": b})
	return b, nil
}

// handlePreset runs a named canned action: center, left, right, sweep or
// led_blink.
func (s *Server) handlePreset(w http.ResponseWriter, r *http.Request, user User) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/preset/")
	ctx := r.Context()
	var (
		msg string
		err error
	)
	switch name {
	case "center":
		var st ServoStatus
		if st, err = s.servo.Center(ctx); err == nil {
			s.servoMoved(st, user)
		}
		msg = "servo centered"
	case "left":
		_, err = s.moveServo(ctx, 0, user)
		msg = "servo moved left"
	case "right":
		_, err = s.moveServo(ctx, 180, user)
		msg = "servo moved right"
	case "sweep":
		err = s.servo.Sweep(ctx, sweepAngles, func(st ServoStatus) {
			s.servoMoved(st, user)
		})
		msg = "sweep complete"
	case "led_blink":
		if s.led == nil {
			reply(w, http.StatusServiceUnavailable, "LED is disabled", nil)
			return
		}
		err = s.led.Blink(ctx, blinkTimes, blinkPeriod)
		s.hub.Broadcast(msgLEDChanged, map[string]int{"led_brightness": s.led.Brightness()})
		msg = "LED blink complete"
	default:
		reply(w, http.StatusBadRequest, "unknown preset", nil)
		return
	}
	if err != nil {
		s.replyServoError(w, err)
		return
	}
	st := s.status()
	reply(w, http.StatusOK, msg, map[string]any{
		"servo_angle":    st.Angle,
		"led_brightness": st.LEDBrightness,
	})
}

// handleCalibration returns the live calibration table in file form.
func (s *Server) handleCalibration(w http.ResponseWriter, r *http.Request, user User) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.calibrationFile())
}

func (s *Server) calibrationFile() calibration.File {
	cfg := s.cfgMgr.Get()
	return calibration.NewFile(s.servo.Table(), cfg.Servo.Pin, cfg.Servo.FrequencyHz, cfg.Servo.Notes)
}

// handleCalibrationPoint handles PUT/DELETE on /api/calibration/{angle} and
// POST on /api/calibration/save.  Admins only.
func (s *Server) handleCalibrationPoint(w http.ResponseWriter, r *http.Request, user User) {
	if !user.Admin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/api/calibration/")
	if key == "save" {
		s.saveCalibration(w, r, user)
		return
	}
	angle, err := strconv.ParseFloat(key, 64)
	if err != nil {
		http.Error(w, "invalid angle", http.StatusBadRequest)
		return
	}
	limits := s.cfgMgr.Get().Limits()
	if err := limits.CheckPosition(angle); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	table := s.servo.Table()
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Duty *float64 `json:"duty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Duty == nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		if err := limits.CheckValue(*req.Duty); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		table.Set(angle, *req.Duty)
		s.events.Log("calibration set %g° = %.2f%% by %s", angle, *req.Duty, user.Username)
	case http.MethodDelete:
		ok, err := table.Remove(angle)
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "cannot remove the last calibration point", http.StatusConflict)
			return
		}
		s.events.Log("calibration delete %g° by %s", angle, user.Username)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.hub.Broadcast(msgCalibrationChanged, table.Points())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) saveCalibration(w http.ResponseWriter, r *http.Request, user User) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfgMgr.Get()
	path := cfg.Servo.CalibrationFile
	f := s.calibrationFile()
	if err := f.Validate(cfg.Limits()); err != nil {
		reply(w, http.StatusConflict, "calibration not saved: "+err.Error(), nil)
		return
	}
	if err := f.Save(path); err != nil {
		s.log.Error("save calibration failed", "path", path, "error", err)
		reply(w, http.StatusInternalServerError, "error: "+err.Error(), nil)
		return
	}
	s.events.Log("calibration saved to %s by %s", path, user.Username)
	reply(w, http.StatusOK, "calibration saved", map[string]any{"file": path, "points": len(f.Points)})
}

// handleInterpolate reports what the servo would be driven with for angle
// without moving it.
func (s *Server) handleInterpolate(w http.ResponseWriter, r *http.Request, user User) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	angle, err := strconv.ParseFloat(r.URL.Query().Get("angle"), 64)
	if err != nil || math.IsNaN(angle) || math.IsInf(angle, 0) {
		http.Error(w, "invalid angle", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, s.servo.Lookup(angle))
}

// userView is a User without its password hash.
type userView struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

// handleUsers handles GET and POST on /api/users.  Only admins may manage users.
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, user User) {
	if !user.Admin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	switch r.Method {
	case http.MethodGet:
		cfg := s.cfgMgr.Get()
		users := make([]userView, len(cfg.Users))
		for i, u := range cfg.Users {
			users[i] = userView{Username: u.Username, Admin: u.Admin}
		}
		writeJSON(w, http.StatusOK, users)
	case http.MethodPost:
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Admin    bool   `json:"admin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		if req.Username == "" || req.Password == "" {
			http.Error(w, "missing username or password", http.StatusBadRequest)
			return
		}
		err := s.cfgMgr.Update(func(c *Config) error {
			for _, u := range c.Users {
				if u.Username == req.Username {
					return errUserExists
				}
			}
			c.Users = append(c.Users, User{Username: req.Username, PasswordHash: hashPassword(req.Password), Admin: req.Admin})
			return nil
		})
		switch {
		case errors.Is(err, errUserExists):
			http.Error(w, "user exists", http.StatusConflict)
			return
		case err != nil:
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.events.Log("create user %s by %s", req.Username, user.Username)
		w.WriteHeader(http.StatusCreated)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleUserByName handles PUT/DELETE on /api/users/{username}.
func (s *Server) handleUserByName(w http.ResponseWriter, r *http.Request, user User) {
	if !user.Admin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	username := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if username == "" {
		http.NotFound(w, r)
		return
	}
	var err error
	switch r.Method {
	case http.MethodPut:
		var req struct {
			Password *string `json:"password,omitempty"`
			Admin    *bool   `json:"admin,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}
		err = s.cfgMgr.Update(func(c *Config) error {
			for i, u := range c.Users {
				if u.Username == username {
					if req.Password != nil {
						c.Users[i].PasswordHash = hashPassword(*req.Password)
					}
					if req.Admin != nil {
						c.Users[i].Admin = *req.Admin
					}
					return nil
				}
			}
			return errNotFound
		})
	case http.MethodDelete:
		if username == "admin" {
			http.Error(w, "cannot delete default admin", http.StatusBadRequest)
			return
		}
		err = s.cfgMgr.Update(func(c *Config) error {
			for i, u := range c.Users {
				if u.Username == username {
					c.Users = append(c.Users[:i], c.Users[i+1:]...)
					return nil
				}
			}
			return errNotFound
		})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch {
	case errors.Is(err, errNotFound):
		http.Error(w, "not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.events.Log("%s user %s by %s", strings.ToLower(r.Method), username, user.Username)
	w.WriteHeader(http.StatusNoContent)
}

// handleLogs returns the event log.  Admins only.  Accepts optional query
// parameter `lines=n` to limit number of lines returned.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request, user User) {
	if !user.Admin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	limit := 200
	if n, err := strconv.Atoi(r.URL.Query().Get("lines")); err == nil && n > 0 {
		limit = n
	}
	lines, err := s.events.Tail(limit)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "log not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, lines)
}

// onMotion is the PIR edge callback.  Motion edges fan out to every alert
// handler; handler errors are logged and do not stop the others.
func (s *Server) onMotion(ev MotionEvent) {
	if ev.Motion {
		s.events.Log("motion on GPIO %d", ev.Pin)
		for _, h := range s.alerts {
			if err := h.Send(ev, s.events); err != nil {
				s.log.Warn("alert failed", "handler", h.Name(), "error", err)
				s.events.Log("alert handler %s error: %v", h.Name(), err)
			}
		}
	} else {
		s.events.Log("motion cleared on GPIO %d", ev.Pin)
	}
	s.hub.Broadcast(msgMotion, ev)
}
