package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/config"
	"github.com/jakob/backend/internal/database"
	"github.com/jakob/backend/internal/logger"
	"github.com/jakob/backend/internal/models"
	"github.com/jakob/backend/internal/utils"
)

const minPhoneDigits = 8

// Placeholder profile values used until the user completes their profile
const (
	defaultDonorFirstName = "New"
	defaultDonorLastName  = "Donor"
	defaultDisplayName    = "New Creator"
	defaultCategory       = models.CategoryArt
)

// AccountService handles registration, login and profiles
type AccountService struct {
	db     *gorm.DB
	cfg    config.DonationConfig
	policy utils.PasswordPolicy
	log    *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(db *gorm.DB, cfg config.DonationConfig, log *zap.Logger) *AccountService {
	if cfg.MaxUsernameAttempts <= 0 {
		cfg.MaxUsernameAttempts = 20
	}
	return &AccountService{
		db:     db,
		cfg:    cfg,
		policy: utils.DefaultPasswordPolicy(),
		log:    logger.OrNop(log),
	}
}

// Account is a user together with their role-specific profile
type Account struct {
	User    *models.User   `json:"user"`
	Profile models.Profile `json:"profile"`
}

// Actor returns the request identity of the account
func (a *Account) Actor() models.Actor {
	return models.Actor{UserID: a.User.ID, Role: a.User.Role}
}

// RegisterInput holds the registration form
type RegisterInput struct {
	Role        models.Role             `json:"user_type"`
	Email       string                  `json:"email"`
	Phone       string                  `json:"phone"`
	Password    string                  `json:"password"`
	FirstName   string                  `json:"first_name"`
	LastName    string                  `json:"last_name"`
	DisplayName string                  `json:"display_name"`
	Category    models.CampaignCategory `json:"category"`
}

func (s *AccountService) validate(in *RegisterInput) error {
	in.Email = utils.NormalizeEmail(in.Email)
	in.Phone = utils.NormalizePhone(in.Phone)

	fields := map[string]string{}
	if !in.Role.Valid() {
		fields["user_type"] = `user type must be "donor" or "influencer"`
	}
	if !utils.IsValidEmail(in.Email) {
		fields["email"] = "invalid email format"
	}
	if !utils.IsValidPhone(in.Phone, minPhoneDigits) {
		fields["phone"] = "invalid phone number"
	}
	if err := s.policy.ValidatePassword(in.Password); err != nil {
		fields["password"] = err.Error()
	}
	if in.Category != "" && !in.Category.Valid() {
		fields["category"] = "invalid category"
	}

	if len(fields) > 0 {
		return apperr.ValidationFields("invalid registration", fields)
	}
	return nil
}

// Register creates a user and its role-specific profile in one transaction.
// Influencers get a username derived from their email address; taken names
// get a numeric suffix.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*Account, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if err := s.checkAvailable(db, in.Email, in.Phone); err != nil {
		return nil, err
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Storage("could not hash password", err)
	}

	user := &models.User{
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: hash,
		Role:         in.Role,
		IsVerified:   false,
		IsActive:     true,
	}
	var profile models.Profile

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Conflict("email or phone number already registered")
			}
			return apperr.Storage("could not create user", err)
		}

		switch in.Role {
		case models.RoleDonor:
			profile, err = createDonorProfile(tx, user, in)
		case models.RoleInfluencer:
			profile, err = s.createInfluencerProfile(tx, user, in)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("user_type", string(user.Role)))
	return &Account{User: user, Profile: profile}, nil
}

func (s *AccountService) checkAvailable(db *gorm.DB, email, phone string) error {
	var taken []models.User
	if err := db.Select("email", "phone").
		Where("email = ? OR phone = ?", email, phone).
		Find(&taken).Error; err != nil {
		return apperr.Storage("could not check existing accounts", err)
	}

	for _, u := range taken {
		if u.Email == email {
			return apperr.Conflict("email already registered")
		}
		if u.Phone == phone {
			return apperr.Conflict("phone number already registered")
		}
	}
	return nil
}

func createDonorProfile(tx *gorm.DB, user *models.User, in RegisterInput) (models.Profile, error) {
	profile := &models.DonorProfile{
		UserID:       user.ID,
		FirstName:    orDefault(in.FirstName, defaultDonorFirstName),
		LastName:     orDefault(in.LastName, defaultDonorLastName),
		TotalDonated: decimal.Zero,
	}
	if err := tx.Create(profile).Error; err != nil {
		return nil, apperr.Storage("could not create donor profile", err)
	}
	return profile, nil
}

// createInfluencerProfile inserts the profile under the first free username.
// Each candidate is tried inside a savepoint, so losing a race to a concurrent
// registration only rolls back that attempt.
func (s *AccountService) createInfluencerProfile(tx *gorm.DB, user *models.User, in RegisterInput) (models.Profile, error) {
	category := in.Category
	if category == "" {
		category = defaultCategory
	}
	profile := &models.InfluencerProfile{
		UserID:      user.ID,
		DisplayName: orDefault(in.DisplayName, defaultDisplayName),
		Category:    category,
		TotalRaised: decimal.Zero,
	}

	base := utils.UsernameBase(in.Email)
	for attempt := 0; attempt < s.cfg.MaxUsernameAttempts; attempt++ {
		profile.Username = base
		if attempt > 0 {
			profile.Username = fmt.Sprintf("%s%d", base, attempt)
		}

		err := tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(profile).Error
		})
		if err == nil {
			return profile, nil
		}
		if !database.IsUniqueViolation(err) {
			return nil, apperr.Storage("could not create influencer profile", err)
		}
		s.log.Debug("username taken, trying next", zap.String("username", profile.Username))
	}

	return nil, apperr.Conflict("could not find a free username, please try again")
}

// Login authenticates by email address or phone number
func (s *AccountService) Login(ctx context.Context, identifier, password string) (*Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperr.Validation("email or phone and password are required")
	}

	db := s.db.WithContext(ctx)
	var user models.User
	query := db.Where("phone = ?", utils.NormalizePhone(identifier))
	if strings.Contains(identifier, "@") {
		query = db.Where("email = ?", utils.NormalizeEmail(identifier))
	}
	if err := query.First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthenticated("invalid credentials")
		}
		return nil, apperr.Storage("could not load user", err)
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return nil, apperr.Unauthenticated("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("account is disabled")
	}

	now := time.Now().UTC()
	if err := db.Model(&user).Update("last_login_at", now).Error; err != nil {
		s.log.Warn("could not record login time", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	profile, err := loadProfile(db, user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &Account{User: &user, Profile: profile}, nil
}

// Me returns the acting user's account
func (s *AccountService) Me(ctx context.Context, actor models.Actor) (*Account, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	if err := db.First(&user, "id = ?", actor.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthenticated("account no longer exists")
		}
		return nil, apperr.Storage("could not load user", err)
	}

	profile, err := loadProfile(db, user.ID, user.Role)
	if err != nil {
		return nil, err
	}
	return &Account{User: &user, Profile: profile}, nil
}

func loadProfile(db *gorm.DB, userID interface{}, role models.Role) (models.Profile, error) {
	profile := models.NewProfile(role)
	if profile == nil {
		return nil, apperr.Forbidden("unknown account type")
	}
	if err := db.Where("user_id = ?", userID).First(profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("%s profile not found", role))
		}
		return nil, apperr.Storage("could not load profile", err)
	}
	return profile, nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
