package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"imperium/api/internal/auth"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeData(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.service.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database not reachable")
			return
		}
		writeData(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	segments := splitPath(r.URL.Path)
	if len(segments) < 2 || segments[0] != "api" {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	rest := segments[2:]

	switch segments[1] {
	case "auth":
		s.handleAuth(w, r, rest)
	case "mentors":
		s.handleMentors(w, r, rest)
	case "users":
		s.withSession(w, r, func(session Session) { s.handleUsers(w, r, session, rest) })
	case "decrees":
		s.withSession(w, r, func(session Session) { s.handleDecrees(w, r, session, rest) })
	case "path":
		s.withSession(w, r, func(session Session) { s.handlePath(w, r, session, rest) })
	case "journal":
		s.withSession(w, r, func(session Session) { s.handleJournal(w, r, session, rest) })
	case "council":
		s.withSession(w, r, func(session Session) { s.handleCouncil(w, r, session, rest) })
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *HTTPServer) handleAuth(w http.ResponseWriter, r *http.Request, rest []string) {
	if len(rest) != 1 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch {
	case r.Method == http.MethodPost && rest[0] == "register":
		var body RegisterInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		session, user, err := s.service.Register(r.Context(), body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusCreated, sessionData(session, user))

	case r.Method == http.MethodPost && rest[0] == "login":
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		session, user, err := s.service.Login(r.Context(), body.Email, body.Password)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, sessionData(session, user))

	case r.Method == http.MethodPost && rest[0] == "refresh":
		var body struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		session, user, err := s.service.Refresh(r.Context(), body.RefreshToken)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, sessionData(session, user))

	case r.Method == http.MethodPost && rest[0] == "logout":
		s.withSession(w, r, func(session Session) {
			var body struct {
				RefreshToken string `json:"refreshToken"`
			}
			_ = decodeBody(r, &body)
			if err := s.service.Logout(r.Context(), session, body.RefreshToken); err != nil {
				writeMappedError(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"ok": true})
		})

	case r.Method == http.MethodGet && rest[0] == "me":
		s.withSession(w, r, func(session Session) {
			user, err := s.service.CurrentUser(r.Context(), session.UserID)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"user": user})
		})

	case r.Method == http.MethodPost && rest[0] == "onboarding":
		s.withSession(w, r, func(session Session) {
			var body OnboardingInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			user, err := s.service.CompleteOnboarding(r.Context(), session.UserID, body)
			if err != nil {
				writeMappedError(w, err)
				return
			}
			writeData(w, http.StatusOK, map[string]any{"user": user})
		})

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *HTTPServer) handleMentors(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch len(rest) {
	case 0:
		writeList(w, http.StatusOK, "mentors", s.service.ListMentors())
	case 1:
		mentor, err := s.service.GetMentor(rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"mentor": mentor})
	case 2:
		if rest[1] != "message" {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		message, err := s.service.MentorMessage(r.Context(), rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"message": message})
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	if len(rest) != 1 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch {
	case r.Method == http.MethodGet && rest[0] == "stats":
		stats, err := s.service.UserStats(r.Context(), session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, stats)

	case r.Method == http.MethodPatch && rest[0] == "profile":
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		user, err := s.service.UpdateProfile(r.Context(), session.UserID, body.Name)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"user": user})

	case r.Method == http.MethodPatch && rest[0] == "settings":
		var body struct {
			SoundEnabled         *bool `json:"soundEnabled"`
			NotificationsEnabled *bool `json:"notificationsEnabled"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		user, err := s.service.UpdateSettings(r.Context(), session.UserID, body.SoundEnabled, body.NotificationsEnabled)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"user": user})

	case r.Method == http.MethodPatch && rest[0] == "mentor":
		var body struct {
			MentorID    string `json:"mentorId"`
			SetAsActive bool   `json:"setAsActive"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		user, err := s.service.SelectMentor(r.Context(), session.UserID, body.MentorID, body.SetAsActive)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"user": user})

	case r.Method == http.MethodPost && rest[0] == "xp":
		var body struct {
			Amount int `json:"amount"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		result, err := s.service.AddXP(r.Context(), session.UserID, body.Amount)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, result)

	case r.Method == http.MethodPatch && rest[0] == "energy":
		var body struct {
			Amount *int `json:"amount"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.Amount == nil {
			writeError(w, http.StatusBadRequest, "Amount is required")
			return
		}
		result, err := s.service.AdjustEnergy(r.Context(), session.UserID, *body.Amount)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, result)

	case r.Method == http.MethodPost && rest[0] == "streak":
		result, err := s.service.IncrementStreak(r.Context(), session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, result)

	case r.Method == http.MethodDelete && rest[0] == "reset":
		if err := s.service.ResetProgress(r.Context(), session.UserID); err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *HTTPServer) handleDecrees(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodPost && len(rest) == 0:
		var body CreateDecreeInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		decree, err := s.service.CreateDecree(r.Context(), session.UserID, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusCreated, map[string]any{"decree": decree})

	case r.Method == http.MethodGet && len(rest) == 0:
		query := r.URL.Query()
		decrees, err := s.service.ListDecrees(r.Context(), session.UserID, query.Get("status"), query.Get("mentor"))
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeList(w, http.StatusOK, "decrees", decrees)

	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "stats":
		stats, err := s.service.DecreeStats(r.Context(), session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, stats)

	case r.Method == http.MethodGet && len(rest) == 1:
		decree, err := s.service.GetDecree(r.Context(), session.UserID, rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"decree": decree})

	case r.Method == http.MethodPatch && len(rest) == 1:
		var body UpdateDecreeInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		decree, err := s.service.UpdateDecree(r.Context(), session.UserID, rest[0], body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"decree": decree})

	case r.Method == http.MethodDelete && len(rest) == 1:
		if err := s.service.DeleteDecree(r.Context(), session.UserID, rest[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "complete":
		result, err := s.service.CompleteDecree(r.Context(), session.UserID, rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, result)

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *HTTPServer) handlePath(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodGet && len(rest) == 0:
		path, err := s.service.GetPath(r.Context(), session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, path)

	case r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "reset":
		path, err := s.service.ResetPath(r.Context(), session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, path)

	case r.Method == http.MethodGet && len(rest) == 1:
		node, err := s.service.GetPathNode(r.Context(), session.UserID, rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"node": node})

	case r.Method == http.MethodPatch && len(rest) == 3 && rest[1] == "quest":
		var body struct {
			Completed *bool `json:"completed"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.Completed == nil {
			writeError(w, http.StatusBadRequest, "Completed flag is required")
			return
		}
		result, err := s.service.UpdateQuest(r.Context(), session.UserID, rest[0], rest[2], *body.Completed)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, result)

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *HTTPServer) handleJournal(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodPost && len(rest) == 0:
		var body CreateJournalInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		entry, err := s.service.CreateJournalEntry(r.Context(), session.UserID, body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusCreated, map[string]any{"entry": entry})

	case r.Method == http.MethodGet && len(rest) == 0:
		query := r.URL.Query()
		entries, err := s.service.ListJournalEntries(r.Context(), session.UserID, JournalQuery{
			Mentor:       query.Get("mentor"),
			FavoriteOnly: query.Get("favorite") == "true",
			Search:       query.Get("search"),
		})
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeList(w, http.StatusOK, "entries", entries)

	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "stats":
		stats, err := s.service.JournalStats(r.Context(), session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, stats)

	case r.Method == http.MethodGet && len(rest) == 1:
		entry, err := s.service.GetJournalEntry(r.Context(), session.UserID, rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"entry": entry})

	case r.Method == http.MethodPatch && len(rest) == 2 && rest[1] == "favorite":
		result, err := s.service.ToggleJournalFavorite(r.Context(), session.UserID, rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, result)

	case r.Method == http.MethodPatch && len(rest) == 1:
		var body UpdateJournalInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		entry, err := s.service.UpdateJournalEntry(r.Context(), session.UserID, rest[0], body)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"entry": entry})

	case r.Method == http.MethodDelete && len(rest) == 1:
		if err := s.service.DeleteJournalEntry(r.Context(), session.UserID, rest[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *HTTPServer) handleCouncil(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	switch {
	case r.Method == http.MethodPost && len(rest) == 0:
		var body struct {
			Dilemma string `json:"dilemma"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		debate, err := s.service.CreateCouncilDebate(r.Context(), session.UserID, body.Dilemma)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusCreated, map[string]any{"debate": debate})

	case r.Method == http.MethodGet && len(rest) == 0:
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
				limit = parsed
			}
		}
		debates, err := s.service.ListCouncilDebates(r.Context(), session.UserID, limit)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeList(w, http.StatusOK, "debates", debates)

	case r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "stats":
		stats, err := s.service.CouncilStats(r.Context(), session.UserID)
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, stats)

	case r.Method == http.MethodGet && len(rest) == 1:
		debate, err := s.service.GetCouncilDebate(r.Context(), session.UserID, rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusOK, map[string]any{"debate": debate})

	case r.Method == http.MethodDelete && len(rest) == 1:
		if err := s.service.DeleteCouncilDebate(r.Context(), session.UserID, rest[0]); err != nil {
			writeMappedError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPost && len(rest) == 2 && rest[1] == "save-journal":
		result, err := s.service.SaveCouncilToJournal(r.Context(), session.UserID, rest[0])
		if err != nil {
			writeMappedError(w, err)
			return
		}
		writeData(w, http.StatusCreated, result)

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *HTTPServer) withSession(w http.ResponseWriter, r *http.Request, next func(Session)) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		writeError(w, http.StatusInternalServerError, "Session lookup failed")
		return
	}
	next(session)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func sessionData(session Session, user map[string]any) map[string]any {
	return map[string]any{
		"token":        session.Token,
		"refreshToken": session.RefreshToken,
		"user":         user,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{
		"status": "success",
		"data":   data,
	})
}

// writeList wraps list payloads with a results count alongside the data
// envelope.
func writeList[T any](w http.ResponseWriter, status int, key string, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, status, map[string]any{
		"status":  "success",
		"results": len(items),
		"data":    map[string]any{key: items},
	})
}

// writeError emits the failure envelope: "fail" for client errors, "error"
// for server errors.
func writeError(w http.ResponseWriter, status int, message string) {
	state := "error"
	if status >= 400 && status < 500 {
		state = "fail"
	}
	writeJSON(w, status, map[string]any{
		"status":  state,
		"message": message,
	})
}

func writeMappedError(w http.ResponseWriter, err error) {
	status, message := mapError(err)
	writeError(w, status, message)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (int, string) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Message
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "Not found"
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "Unauthorized"
	}
	return http.StatusInternalServerError, "Server error"
}
