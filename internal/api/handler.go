package api

import (
	"errors"
	"html/template"
	"strings"
	"time"

	"github.com/terraincognita07/labnotes/internal/models"
	"github.com/terraincognita07/labnotes/internal/services"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSessionTTL  = 7 * 24 * time.Hour
	loginAttemptLimit  = 5
	loginAttemptWindow = 15 * time.Minute
	newPhotoSlots      = 5
)

var pageTemplates = []string{
	"index",
	"entry",
	"login",
	"admin_dashboard",
	"admin_form",
	"not_found",
}

type TimelineReader interface {
	Page(page int, perPage int) (services.TimelinePage, error)
	Entry(entryID uint) (services.TimelineEntry, error)
	EntryByDate(entryDate string) (services.TimelineEntry, error)
	Dashboard() ([]models.DashboardRow, error)
}

type EntryPublisher interface {
	Publish(input services.EntryInput) (uint, error)
	Edit(entryID uint, edit services.EntryEdit) error
	RemoveAsset(assetID uint) (uint, error)
	Delete(entryID uint) error
}

type Options struct {
	TemplateDir string
	SecretKey   string
	// AdminPasswordHash takes precedence over AdminPassword.
	AdminPassword     string
	AdminPasswordHash string
	CookieSecure      bool
	Location          *time.Location
	MaxUploadBytes    int64
	EntriesPerPage    int
	Logger            *zap.Logger
}

type Handler struct {
	timeline       TimelineReader
	publisher      EntryPublisher
	templates      map[string]*template.Template
	secretKey      []byte
	cookieCodec    *secureCookieCodec
	cookieSecure   bool
	passwordHash   []byte
	location       *time.Location
	maxUploadBytes int64
	entriesPerPage int
	loginLimiter   *attemptLimiter
	logger         *zap.Logger
	now            func() time.Time
}

func NewHandler(timeline TimelineReader, publisher EntryPublisher, options Options) (*Handler, error) {
	if timeline == nil || publisher == nil {
		return nil, errors.New("timeline and publisher are required")
	}
	if strings.TrimSpace(options.SecretKey) == "" {
		return nil, errors.New("secret key is required")
	}

	passwordHash, err := resolveAdminPasswordHash(options.AdminPassword, options.AdminPasswordHash)
	if err != nil {
		return nil, err
	}

	codec, err := newSecureCookieCodec([]byte(options.SecretKey))
	if err != nil {
		return nil, err
	}

	location := options.Location
	if location == nil {
		location = time.UTC
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	perPage := options.EntriesPerPage
	if perPage <= 0 {
		perPage = services.DefaultEntriesPerPage
	}

	handler := &Handler{
		timeline:       timeline,
		publisher:      publisher,
		secretKey:      []byte(options.SecretKey),
		cookieCodec:    codec,
		cookieSecure:   options.CookieSecure,
		passwordHash:   passwordHash,
		location:       location,
		maxUploadBytes: options.MaxUploadBytes,
		entriesPerPage: perPage,
		loginLimiter:   newAttemptLimiter(loginAttemptLimit, loginAttemptWindow),
		logger:         logger.Named("http"),
		now:            time.Now,
	}

	templates, err := parsePageTemplates(options.TemplateDir, handler.templateFuncMap(), pageTemplates)
	if err != nil {
		return nil, err
	}
	handler.templates = templates
	return handler, nil
}

func resolveAdminPasswordHash(password string, hash string) ([]byte, error) {
	if hash = strings.TrimSpace(hash); hash != "" {
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, errors.New("admin password hash is not a valid bcrypt hash")
		}
		return []byte(hash), nil
	}
	if password == "" {
		return nil, errors.New("admin password is required")
	}
	generated, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.New("failed to hash admin password")
	}
	return generated, nil
}
