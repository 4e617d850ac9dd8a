package models

import "sort"

type NotificationPreferences struct {
	Email    bool `json:"email"`
	Push     bool `json:"push"`
	Training bool `json:"training"`
}

type Preferences struct {
	Theme         string                  `json:"theme"`
	Notifications NotificationPreferences `json:"notifications"`
}

var Themes = []string{"light", "dark", "system"}

func DefaultPreferences() Preferences {
	return Preferences{
		Theme: "system",
		Notifications: NotificationPreferences{
			Email:    true,
			Push:     true,
			Training: true,
		},
	}
}

// Account is the stored user record. It is never serialized to clients;
// use Public for that.
type Account struct {
	ID           string            `json:"id"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"passwordHash"`
	DisplayName  string            `json:"displayName"`
	AvatarURL    string            `json:"avatarUrl"`
	Preferences  *Preferences      `json:"preferences,omitempty"`
	APIKeys      map[string]string `json:"apiKeys,omitempty"`
	CreatedAt    string            `json:"createdAt"`
	UpdatedAt    string            `json:"updatedAt"`
}

// User is the client-facing view of an Account.
type User struct {
	ID             string      `json:"id"`
	Email          string      `json:"email"`
	DisplayName    string      `json:"displayName"`
	AvatarURL      string      `json:"avatarUrl"`
	Preferences    Preferences `json:"preferences"`
	HasAPIKeys     bool        `json:"hasApiKeys"`
	APIKeyServices []string    `json:"apiKeyServices"`
	CreatedAt      string      `json:"createdAt"`
	UpdatedAt      string      `json:"updatedAt"`
}

func (a Account) APIKeyServices() []string {
	services := make([]string, 0, len(a.APIKeys))
	for service := range a.APIKeys {
		services = append(services, service)
	}
	sort.Strings(services)
	return services
}

func (a Account) EffectivePreferences() Preferences {
	if a.Preferences == nil {
		return DefaultPreferences()
	}
	return *a.Preferences
}

func (a Account) Public() User {
	return User{
		ID:             a.ID,
		Email:          a.Email,
		DisplayName:    a.DisplayName,
		AvatarURL:      a.AvatarURL,
		Preferences:    a.EffectivePreferences(),
		HasAPIKeys:     len(a.APIKeys) > 0,
		APIKeyServices: a.APIKeyServices(),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type Settings struct {
	DisplayName    string      `json:"displayName"`
	AvatarURL      string      `json:"avatarUrl"`
	Preferences    Preferences `json:"preferences"`
	HasAPIKeys     bool        `json:"hasApiKeys"`
	APIKeyServices []string    `json:"apiKeyServices"`
	UpdatedAt      string      `json:"updatedAt"`
}

func (a Account) Settings() Settings {
	return Settings{
		DisplayName:    a.DisplayName,
		AvatarURL:      a.AvatarURL,
		Preferences:    a.EffectivePreferences(),
		HasAPIKeys:     len(a.APIKeys) > 0,
		APIKeyServices: a.APIKeyServices(),
		UpdatedAt:      a.UpdatedAt,
	}
}
