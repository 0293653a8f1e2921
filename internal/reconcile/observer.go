package reconcile

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/tmarcon/nestcard-go/internal/datastore"
	"github.com/tmarcon/nestcard-go/internal/errors"
	"github.com/tmarcon/nestcard-go/internal/textutil"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Placeholder pair used when the transcribed observer name is empty or
// unusable.
const (
	PlaceholderFirstName = "Obs"
	PlaceholderLastName  = "Observateur"
)

const observerEmailDomain = "transcription.trans"

// ResolveObserver parses a transcribed observer name into an idempotently
// created or reused user. Existing transcription-created users are matched
// case-insensitively on given/family name; new users are auto-validated and
// get a random, uncommunicated password.
func (s *Service) ResolveObserver(rawName string) (user *datastore.User, created bool, err error) {
	firstName, lastName := SplitObserverName(rawName)

	existing, err := s.store.FindTranscriptionUser(firstName, lastName)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	username, err := s.uniqueUsername(firstName, lastName)
	if err != nil {
		return nil, false, err
	}

	passwordHash, err := randomPasswordHash()
	if err != nil {
		return nil, false, err
	}

	newUser := &datastore.User{
		Username:          username,
		Email:             username + "@" + observerEmailDomain,
		FirstName:         firstName,
		LastName:          lastName,
		PasswordHash:      passwordHash,
		FromTranscription: true,
		Validated:         true,
		Role:              "observateur",
	}
	if err := s.store.CreateUser(newUser); err != nil {
		// Lost a race on the username or the name pair; reuse the winner.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			if winner, ferr := s.store.FindTranscriptionUser(firstName, lastName); ferr == nil {
				return winner, false, nil
			}
		}
		return nil, false, errors.New(err).
			Category(errors.CategoryDatabase).
			Component("reconcile").
			Context("username", username).
			Build()
	}

	logger.Info("observer created from transcription",
		"username", username, "first_name", firstName, "last_name", lastName)
	return newUser, true, nil
}

// SplitObserverName normalizes a transcribed observer name into a
// given/family pair. A single token is duplicated into both; empty or
// unusable input falls back to the placeholder pair.
func SplitObserverName(rawName string) (firstName, lastName string) {
	trimmed := strings.TrimSpace(rawName)
	if trimmed == "" {
		return PlaceholderFirstName, PlaceholderLastName
	}

	parts := strings.Fields(trimmed)
	if len(parts) >= 2 {
		firstName = parts[0]
		lastName = strings.Join(parts[1:], " ")
	} else {
		firstName = parts[0]
		lastName = parts[0]
	}

	firstName = textutil.SanitizeNamePart(firstName)
	lastName = textutil.SanitizeNamePart(lastName)
	if firstName == "" || lastName == "" {
		return PlaceholderFirstName, PlaceholderLastName
	}
	return firstName, lastName
}

// uniqueUsername builds the login handle from the lowercase given+family
// pair, appending an incrementing numeric suffix on collision.
func (s *Service) uniqueUsername(firstName, lastName string) (string, error) {
	base := textutil.LoginToken(firstName) + "." + textutil.LoginToken(lastName)

	username := base
	for counter := 1; ; counter++ {
		taken, err := s.store.UsernameExists(username)
		if err != nil {
			return "", err
		}
		if !taken {
			return username, nil
		}
		username = fmt.Sprintf("%s%d", base, counter)
	}
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomPasswordHash generates a random 12-character password and returns
// its bcrypt hash. The clear text is never stored or communicated; these
// accounts are not meant for direct login.
func randomPasswordHash() (string, error) {
	password := make([]byte, 12)
	for i := range password {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return "", err
		}
		password[i] = passwordAlphabet[n.Int64()]
	}

	hash, err := bcrypt.GenerateFromPassword(password, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
