package classroom

import (
	"errors"
	"strings"
	"time"

	classroomapi "google.golang.org/api/classroom/v1"
)

var (
	// ErrExchange reports an authorization code the provider refused to exchange.
	ErrExchange = errors.New("classroom: authorization code exchange failed")
	// ErrProfile reports a caller profile lacking a stable subject id or display name.
	ErrProfile = errors.New("classroom: profile resolution failed")
	// ErrPermissionDenied reports an HTTP 403 from the directory API.
	ErrPermissionDenied = errors.New("classroom: permission denied")
)

// CourseRole selects which side of the roster the caller is listed on.
type CourseRole string

const (
	AsTeacher CourseRole = "teacher"
	AsStudent CourseRole = "student"
)

// Token is the credential pair issued by the provider.
type Token struct {
	AccessToken  string
	RefreshToken string
	Scope        string
	Expiry       time.Time
}

// Person is a profile as reported by the provider.
type Person struct {
	ID       string
	Name     string
	Email    string
	PhotoURL string
}

// Resolvable reports whether the person carries the fields needed to merge them locally.
func (p Person) Resolvable() bool {
	return p.ID != "" && p.Name != ""
}

// Course is a classroom as reported by the provider.
type Course struct {
	ID      string
	Name    string
	Section string
	Room    string
	State   string
}

func personFromProfile(profile *classroomapi.UserProfile, fallbackID string) Person {
	if profile == nil {
		return Person{ID: fallbackID}
	}
	person := Person{
		ID:       profile.Id,
		Email:    strings.TrimSpace(profile.EmailAddress),
		PhotoURL: normalizePhotoURL(profile.PhotoUrl),
	}
	if person.ID == "" {
		person.ID = fallbackID
	}
	if profile.Name != nil {
		person.Name = strings.TrimSpace(profile.Name.FullName)
		if person.Name == "" {
			person.Name = strings.TrimSpace(profile.Name.GivenName + " " + profile.Name.FamilyName)
		}
	}
	return person
}

// normalizePhotoURL turns the provider's scheme-relative photo links into absolute URLs.
func normalizePhotoURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	return raw
}

func courseFromAPI(item *classroomapi.Course) Course {
	return Course{
		ID:      item.Id,
		Name:    strings.TrimSpace(item.Name),
		Section: strings.TrimSpace(item.Section),
		Room:    strings.TrimSpace(item.Room),
		State:   item.CourseState,
	}
}
