package account

import (
	"context"
	"regexp"

	"gorm.io/gorm"

	"github.com/jakob/backend/internal/apperr"
	"github.com/jakob/backend/internal/database"
	"github.com/jakob/backend/internal/models"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{3,50}$`)

// UpdateProfile applies the fields the actor's profile variant owns. Fields
// belonging to the other role are ignored.
func (s *AccountService) UpdateProfile(ctx context.Context, actor models.Actor, update models.ProfileUpdate) (*Account, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := loadProfile(tx, actor.UserID, actor.Role)
		if err != nil {
			return err
		}

		changes := profile.ApplyUpdate(update)
		if len(changes) == 0 {
			return apperr.Validation("no valid fields to update")
		}
		if err := validateChanges(changes); err != nil {
			return err
		}

		if err := tx.Model(profile).Updates(changes).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.Conflict("username already taken")
			}
			return apperr.Storage("could not update profile", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Me(ctx, actor)
}

func validateChanges(changes map[string]interface{}) error {
	fields := map[string]string{}

	for _, key := range []string{"first_name", "last_name", "display_name"} {
		if v, ok := changes[key]; ok && v == "" {
			fields[key] = "cannot be empty"
		}
	}
	if v, ok := changes["username"].(string); ok && !usernamePattern.MatchString(v) {
		fields["username"] = "username must be 3-50 lowercase letters, digits or underscores"
	}
	if v, ok := changes["favorite_categories"].(models.StringList); ok {
		for _, c := range v {
			if !models.CampaignCategory(c).Valid() {
				fields["favorite_categories"] = "invalid category " + c
				break
			}
		}
	}

	if len(fields) > 0 {
		return apperr.ValidationFields("invalid profile", fields)
	}
	return nil
}
