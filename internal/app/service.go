package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"imperium/api/internal/account"
	"imperium/api/internal/auth"
	"imperium/api/internal/config"
	"imperium/api/internal/counsel"
	"imperium/api/internal/mentors"
	"imperium/api/internal/progression"
	"imperium/api/internal/search"
	"imperium/api/internal/store"
	"imperium/api/internal/util"
)

type Session struct {
	Token        string
	RefreshToken string
	UserID       string
	UserName     string
	JTI          string
	ExpiresAt    time.Time
}

// dataStore is the persistence surface the service needs. *store.PostgresStore
// implements it; tests substitute a fake.
type dataStore interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, user store.User) error
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	UpdateUserName(ctx context.Context, userID, name string) (store.User, error)
	UpdateUserSettings(ctx context.Context, userID string, soundEnabled, notificationsEnabled *bool) (store.User, error)
	UpdateUserMentor(ctx context.Context, userID, mentorID string, setAsActive bool) (store.User, error)
	CompleteOnboarding(ctx context.Context, userID string, goal *string, soundEnabled, notificationsEnabled bool) (store.User, error)
	AddXP(ctx context.Context, userID string, amount int) (xp, level int, err error)
	AdjustEnergy(ctx context.Context, userID string, amount int) (int, error)
	IncrementStreak(ctx context.Context, userID string) (int, error)
	ResetProgress(ctx context.Context, userID string) error
	UserCounts(ctx context.Context, userID string) (store.UserCounts, error)

	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)

	InsertDecree(ctx context.Context, decree store.Decree) (store.Decree, error)
	ListDecrees(ctx context.Context, userID, status, mentor string) ([]store.Decree, error)
	GetDecree(ctx context.Context, userID, decreeID string) (store.Decree, error)
	UpdateDecree(ctx context.Context, userID, decreeID string, update store.DecreeUpdate) (store.Decree, error)
	DeleteDecree(ctx context.Context, userID, decreeID string) (bool, error)
	CompleteDecree(ctx context.Context, userID, decreeID string) (store.Decree, int, int, int, error)
	DecreeStats(ctx context.Context, userID string) (store.DecreeStats, error)

	CountPathNodes(ctx context.Context, userID string) (int, error)
	SeedPath(ctx context.Context, userID string, nodes []progression.Node) error
	ListPathNodes(ctx context.Context, userID string) ([]store.PathNode, error)
	GetPathNode(ctx context.Context, userID, nodeID string) (store.PathNode, error)
	UpdateQuest(ctx context.Context, userID, nodeID, questID string, completed bool) (store.QuestResult, error)
	ResetPath(ctx context.Context, userID string, nodes []progression.Node) error

	InsertJournalEntry(ctx context.Context, entry store.JournalEntry) (store.JournalEntry, error)
	ListJournalEntries(ctx context.Context, userID string, filter store.JournalFilter) ([]store.JournalEntry, error)
	SearchJournalEntries(ctx context.Context, userID, search string, filter store.JournalFilter) ([]store.JournalEntry, error)
	ListJournalEntriesByIDs(ctx context.Context, userID string, ids []string) ([]store.JournalEntry, error)
	GetJournalEntry(ctx context.Context, userID, entryID string) (store.JournalEntry, error)
	UpdateJournalEntry(ctx context.Context, userID, entryID string, update store.JournalUpdate) (store.JournalEntry, error)
	DeleteJournalEntry(ctx context.Context, userID, entryID string) (bool, error)
	ToggleJournalFavorite(ctx context.Context, userID, entryID string) (bool, error)
	JournalStats(ctx context.Context, userID string) (store.JournalStats, error)

	InsertCouncilDebate(ctx context.Context, debate store.CouncilDebate) (store.CouncilDebate, error)
	ListCouncilDebates(ctx context.Context, userID string, limit int) ([]store.CouncilDebate, error)
	GetCouncilDebate(ctx context.Context, userID, debateID string) (store.CouncilDebate, error)
	DeleteCouncilDebate(ctx context.Context, userID, debateID string) (bool, error)
	CouncilStats(ctx context.Context, userID string) (store.CouncilStats, error)
}

// sessionStore holds hashed refresh tokens. Redis when configured,
// otherwise the Postgres store doubles as the fallback.
type sessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (string, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions sessionStore
	accounts *account.Service
	counsel  counsel.Generator
	search   *search.Service
}

func New(cfg config.Config, dataStore *store.PostgresStore, gen counsel.Generator, searchService *search.Service) *Service {
	return newService(cfg, dataStore, dataStore, gen, searchService)
}

func NewWithSessionStore(cfg config.Config, dataStore *store.PostgresStore, sessions sessionStore, gen counsel.Generator, searchService *search.Service) *Service {
	return newService(cfg, dataStore, sessions, gen, searchService)
}

func newService(cfg config.Config, data dataStore, sessions sessionStore, gen counsel.Generator, searchService *search.Service) *Service {
	return &Service{
		cfg:      cfg,
		store:    data,
		sessions: sessions,
		accounts: account.NewService(data),
		counsel:  gen,
		search:   searchService,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (Session, map[string]any, error) {
	if strings.TrimSpace(input.Name) == "" || strings.TrimSpace(input.Email) == "" || input.Password == "" {
		return Session{}, nil, domainError(http.StatusBadRequest, "Name, email and password are required")
	}
	user, err := s.accounts.Register(ctx, account.RegisterRequest{
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
	})
	switch {
	case err == nil:
	case errors.Is(err, account.ErrEmailTaken):
		return Session{}, nil, domainError(http.StatusBadRequest, "Email already registered")
	case errors.Is(err, account.ErrPasswordTooShort), errors.Is(err, account.ErrMissingFields):
		return Session{}, nil, domainError(http.StatusBadRequest, err.Error())
	default:
		return Session{}, nil, err
	}
	session, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, nil, err
	}
	return session, userView(user), nil
}

func (s *Service) Login(ctx context.Context, email, password string) (Session, map[string]any, error) {
	user, err := s.accounts.Login(ctx, email, password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			return Session{}, nil, domainError(http.StatusUnauthorized, "Invalid email or password")
		}
		return Session{}, nil, err
	}
	session, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, nil, err
	}
	return session, userView(user), nil
}

// Refresh rotates the refresh token: the presented token is revoked and a
// fresh pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, map[string]any, error) {
	if refreshToken == "" {
		return Session{}, nil, domainError(http.StatusBadRequest, "Refresh token is required")
	}
	tokenHash := auth.HashToken(refreshToken)
	userID, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, nil, domainError(http.StatusUnauthorized, "Invalid refresh token")
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, nil, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return Session{}, nil, domainError(http.StatusUnauthorized, "Invalid refresh token")
	}
	session, err := s.issueSession(ctx, user)
	if err != nil {
		return Session{}, nil, err
	}
	return session, userView(user), nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if refreshToken != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), user.ID, user.Name, jti, expiresAt)
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), user.ID, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		UserID:       user.ID,
		UserName:     user.Name,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}
	return Session{
		Token:     token,
		UserID:    claims.Subject,
		UserName:  claims.Name,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) CurrentUser(ctx context.Context, userID string) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return userView(user), nil
}

type OnboardingInput struct {
	Goal                 *string `json:"goal"`
	SoundEnabled         *bool   `json:"soundEnabled"`
	NotificationsEnabled *bool   `json:"notificationsEnabled"`
}

func (s *Service) CompleteOnboarding(ctx context.Context, userID string, input OnboardingInput) (map[string]any, error) {
	sound := true
	if input.SoundEnabled != nil {
		sound = *input.SoundEnabled
	}
	notifications := true
	if input.NotificationsEnabled != nil {
		notifications = *input.NotificationsEnabled
	}
	user, err := s.store.CompleteOnboarding(ctx, userID, input.Goal, sound, notifications)
	if err != nil {
		return nil, err
	}
	return userView(user), nil
}

func (s *Service) UserStats(ctx context.Context, userID string) (map[string]any, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.UserCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	daysActive := int(time.Since(user.CreatedAt).Hours()/24) + 1
	return map[string]any{
		"user": userView(user),
		"stats": map[string]any{
			"totalDecrees":     counts.TotalDecrees,
			"completedDecrees": counts.CompletedDecrees,
			"activeDecrees":    counts.ActiveDecrees,
			"journalEntries":   counts.JournalEntries,
			"councilSessions":  counts.CouncilSessions,
			"daysActive":       daysActive,
		},
	}, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID, name string) (map[string]any, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusBadRequest, "Name is required")
	}
	user, err := s.store.UpdateUserName(ctx, userID, name)
	if err != nil {
		return nil, err
	}
	return userView(user), nil
}

func (s *Service) UpdateSettings(ctx context.Context, userID string, soundEnabled, notificationsEnabled *bool) (map[string]any, error) {
	if soundEnabled == nil && notificationsEnabled == nil {
		return nil, domainError(http.StatusBadRequest, "No settings provided")
	}
	user, err := s.store.UpdateUserSettings(ctx, userID, soundEnabled, notificationsEnabled)
	if err != nil {
		return nil, err
	}
	return userView(user), nil
}

func (s *Service) SelectMentor(ctx context.Context, userID, mentorID string, setAsActive bool) (map[string]any, error) {
	if !mentors.Exists(mentorID) {
		return nil, domainError(http.StatusBadRequest, "Unknown mentor")
	}
	user, err := s.store.UpdateUserMentor(ctx, userID, mentorID, setAsActive)
	if err != nil {
		return nil, err
	}
	return userView(user), nil
}

func (s *Service) AddXP(ctx context.Context, userID string, amount int) (map[string]any, error) {
	if amount <= 0 {
		return nil, domainError(http.StatusBadRequest, "XP amount must be a positive number")
	}
	xp, level, err := s.store.AddXP(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"xp":        xp,
		"level":     level,
		"leveledUp": level > progression.Level(xp-amount),
		"xpGained":  amount,
	}, nil
}

func (s *Service) AdjustEnergy(ctx context.Context, userID string, amount int) (map[string]any, error) {
	energy, err := s.store.AdjustEnergy(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	return map[string]any{"energy": energy}, nil
}

func (s *Service) IncrementStreak(ctx context.Context, userID string) (map[string]any, error) {
	streak, err := s.store.IncrementStreak(ctx, userID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"streak": streak}, nil
}

func (s *Service) ResetProgress(ctx context.Context, userID string) error {
	return s.store.ResetProgress(ctx, userID)
}

func (s *Service) ListMentors() []mentors.Mentor {
	return mentors.All()
}

func (s *Service) GetMentor(mentorID string) (mentors.Mentor, error) {
	mentor, ok := mentors.ByID(mentorID)
	if !ok {
		return mentors.Mentor{}, domainError(http.StatusNotFound, "Mentor not found")
	}
	return mentor, nil
}

func (s *Service) MentorMessage(ctx context.Context, mentorID string) (map[string]any, error) {
	mentor, ok := mentors.ByID(mentorID)
	if !ok {
		return nil, domainError(http.StatusNotFound, "Mentor not found")
	}
	message, err := s.counsel.Message(ctx, mentor.ID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"mentorId":  mentor.ID,
		"principle": message.Principle,
		"analysis":  message.Analysis,
		"directive": message.Directive,
	}, nil
}

func userView(u store.User) map[string]any {
	return map[string]any{
		"id":                     u.ID,
		"name":                   u.Name,
		"email":                  u.Email,
		"level":                  u.Level,
		"xp":                     u.XP,
		"streak":                 u.Streak,
		"energy":                 u.Energy,
		"goal":                   u.Goal,
		"selectedMentorId":       u.SelectedMentorID,
		"activeMentorId":         u.ActiveMentorID,
		"soundEnabled":           u.SoundEnabled,
		"notificationsEnabled":   u.NotificationsEnabled,
		"hasCompletedOnboarding": u.HasCompletedOnboarding,
		"createdAt":              u.CreatedAt,
	}
}
