package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"lora-studio-backend/internal/apperror"
	"lora-studio-backend/internal/auth"
	"lora-studio-backend/internal/logger"
	"lora-studio-backend/internal/models"
	"lora-studio-backend/internal/store"
)

var (
	profileFields  = []string{"displayName", "avatarUrl", "preferences"}
	settingsFields = []string{"displayName", "avatarUrl", "preferences", "apiKeys"}

	serviceNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,49}$`)
)

type AccountService struct {
	accounts store.Table
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenService
	box      *auth.SecretBox
	log      *logger.Logger
}

func NewAccountService(accounts store.Table, hasher *auth.PasswordHasher, tokens *auth.TokenService, box *auth.SecretBox, log *logger.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		box:      box,
		log:      log,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AccountService) findByEmail(ctx context.Context, email string) (store.Document, error) {
	docs, err := s.accounts.Scan(ctx, func(doc store.Document) bool {
		return doc.String("email") == email
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (s *AccountService) load(ctx context.Context, userID string) (models.Account, store.Document, error) {
	doc, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return models.Account{}, nil, fmt.Errorf("failed to load account: %w", err)
	}
	if doc == nil {
		return models.Account{}, nil, apperror.NotFound(msgUserNotFound)
	}
	var account models.Account
	if err := store.Decode(doc, &account); err != nil {
		return models.Account{}, nil, err
	}
	return account, doc, nil
}

func (s *AccountService) authResponse(account models.Account) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(auth.Identity{ID: account.ID, Email: account.Email})
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &models.AuthResponse{User: account.Public(), Token: token}, nil
}

// Register creates an account for a new, case-folded email address.
func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	email := normalizeEmail(req.Email)
	if len(req.Password) > auth.MaxPasswordBytes {
		return nil, apperror.Validation("Request validation failed", map[string]string{
			"password": fmt.Sprintf("must be at most %d bytes", auth.MaxPasswordBytes),
		})
	}

	existing, err := s.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.Conflict("An account with this email already exists")
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}
	prefs := models.DefaultPreferences()

	doc, err := store.Encode(models.Account{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		DisplayName:  displayName,
		Preferences:  &prefs,
	})
	if err != nil {
		return nil, err
	}
	created, err := s.accounts.Create(ctx, doc)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, apperror.Conflict("An account with this email already exists")
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	var account models.Account
	if err := store.Decode(created, &account); err != nil {
		return nil, err
	}
	s.log.Info("account registered", "user_id", account.ID)
	return s.authResponse(account)
}

// Login checks credentials. Unknown email and wrong password are reported
// identically.
func (s *AccountService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	doc, err := s.findByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperror.Unauthorized("Invalid email or password")
	}
	var account models.Account
	if err := store.Decode(doc, &account); err != nil {
		return nil, err
	}
	if !s.hasher.Verify(req.Password, account.PasswordHash) {
		return nil, apperror.Unauthorized("Invalid email or password")
	}
	return s.authResponse(account)
}

func (s *AccountService) Profile(ctx context.Context, userID string) (models.User, error) {
	account, _, err := s.load(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	return account.Public(), nil
}

func (s *AccountService) UpdateProfile(ctx context.Context, userID string, body store.Document) (models.User, error) {
	fields := pick(body, profileFields...)
	if len(fields) == 0 {
		return models.User{}, noValidFields()
	}
	account, _, err := s.load(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	update, err := profileUpdate(account, fields)
	if err != nil {
		return models.User{}, err
	}
	updated, err := s.save(ctx, userID, update)
	if err != nil {
		return models.User{}, err
	}
	return updated.Public(), nil
}

// Settings returns the caller's settings, writing default preferences first
// for accounts created without them.
func (s *AccountService) Settings(ctx context.Context, userID string) (models.Settings, error) {
	account, doc, err := s.load(ctx, userID)
	if err != nil {
		return models.Settings{}, err
	}
	if _, ok := doc["preferences"]; !ok || account.Preferences == nil {
		account, err = s.save(ctx, userID, store.Document{"preferences": models.DefaultPreferences()})
		if err != nil {
			return models.Settings{}, err
		}
	}
	return account.Settings(), nil
}

func (s *AccountService) UpdateSettings(ctx context.Context, userID string, body store.Document) (models.Settings, error) {
	fields := pick(body, settingsFields...)
	if len(fields) == 0 {
		return models.Settings{}, noValidFields()
	}
	account, _, err := s.load(ctx, userID)
	if err != nil {
		return models.Settings{}, err
	}

	profile := pick(fields, profileFields...)
	update, err := profileUpdate(account, profile)
	if err != nil {
		return models.Settings{}, err
	}
	if raw, ok := fields["apiKeys"]; ok {
		keys, err := s.sealAPIKeys(account, raw)
		if err != nil {
			return models.Settings{}, err
		}
		update["apiKeys"] = keys
	}

	updated, err := s.save(ctx, userID, update)
	if err != nil {
		return models.Settings{}, err
	}
	return updated.Settings(), nil
}

// ProviderKey returns the caller's own key for service, falling back to the
// server key. Having neither is a client error.
func (s *AccountService) ProviderKey(ctx context.Context, userID, service, fallback string) (string, error) {
	account, _, err := s.load(ctx, userID)
	if err != nil {
		return "", err
	}
	if sealed := account.APIKeys[service]; sealed != "" {
		key, err := s.box.Decrypt(sealed, secretContext(userID, service))
		if err != nil {
			return "", fmt.Errorf("failed to decrypt %s key: %w", service, err)
		}
		return key, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", apperror.Validation(fmt.Sprintf("No %s API key configured", service), nil).WithCode(CodeMissingAPIKey)
}

func (s *AccountService) save(ctx context.Context, userID string, update store.Document) (models.Account, error) {
	doc, err := s.accounts.Update(ctx, userID, update)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Account{}, apperror.NotFound(msgUserNotFound)
		}
		return models.Account{}, fmt.Errorf("failed to update account: %w", err)
	}
	var account models.Account
	if err := store.Decode(doc, &account); err != nil {
		return models.Account{}, err
	}
	return account, nil
}

// sealAPIKeys merges the submitted keys into the stored set. Values are
// encrypted per user and service; an empty value removes the key.
func (s *AccountService) sealAPIKeys(account models.Account, raw any) (map[string]string, error) {
	submitted, ok := raw.(map[string]any)
	if !ok {
		return nil, apperror.Validation("Request validation failed", map[string]string{"apiKeys": "must be an object"})
	}

	keys := make(map[string]string, len(account.APIKeys)+len(submitted))
	for service, sealed := range account.APIKeys {
		keys[service] = sealed
	}

	errs := fieldErrors{}
	for service, v := range submitted {
		value, isString := v.(string)
		if v != nil && !isString {
			errs["apiKeys."+service] = "must be a string"
			continue
		}
		if !serviceNamePattern.MatchString(service) {
			errs["apiKeys."+service] = "invalid service name"
			continue
		}
		value = strings.TrimSpace(value)
		if value == "" {
			delete(keys, service)
			continue
		}
		sealed, err := s.box.Encrypt(value, secretContext(account.ID, service))
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt %s key: %w", service, err)
		}
		keys[service] = sealed
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func secretContext(userID, service string) string {
	return userID + ":" + service
}

// profileUpdate validates the profile fields present in fields.
func profileUpdate(account models.Account, fields store.Document) (store.Document, error) {
	update := store.Document{}
	errs := fieldErrors{}

	if v, ok := fields["displayName"]; ok {
		name, isString := v.(string)
		name = strings.TrimSpace(name)
		if n := utf8.RuneCountInString(name); !isString || n < 2 || n > 50 {
			errs["displayName"] = "must be between 2 and 50 characters"
		} else {
			update["displayName"] = name
		}
	}
	if v, ok := fields["avatarUrl"]; ok {
		avatar, isString := v.(string)
		avatar = strings.TrimSpace(avatar)
		if !isString || (avatar != "" && !isHTTPURL(avatar)) {
			errs["avatarUrl"] = "must be an http or https URL"
		} else {
			update["avatarUrl"] = avatar
		}
	}
	if v, ok := fields["preferences"]; ok {
		prefs, err := mergePreferences(account.EffectivePreferences(), v)
		if err != nil {
			errs["preferences"] = err.Error()
		} else {
			update["preferences"] = prefs
		}
	}

	if err := errs.err(); err != nil {
		return nil, err
	}
	return update, nil
}

// mergePreferences overlays a partial preferences object on current.
func mergePreferences(current models.Preferences, v any) (models.Preferences, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return models.Preferences{}, errors.New("must be an object")
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return models.Preferences{}, errors.New("must be an object")
	}
	merged := current
	if err := json.Unmarshal(raw, &merged); err != nil {
		return models.Preferences{}, errors.New("contains fields of the wrong type")
	}
	if !slices.Contains(models.Themes, merged.Theme) {
		return models.Preferences{}, fmt.Errorf("theme must be one of %s", strings.Join(models.Themes, ", "))
	}
	return merged, nil
}
