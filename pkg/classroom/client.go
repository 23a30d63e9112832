package classroom

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	classroomapi "google.golang.org/api/classroom/v1"
	"google.golang.org/api/option"
)

// Scopes requested during consent.
var Scopes = []string{
	classroomapi.ClassroomCoursesReadonlyScope,
	classroomapi.ClassroomRostersReadonlyScope,
	classroomapi.ClassroomProfileEmailsScope,
	classroomapi.ClassroomProfilePhotosScope,
}

const activeCourseState = "ACTIVE"

// Config configures the provider client.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	// AuthURL and TokenURL override the Google OAuth endpoints when set.
	AuthURL  string
	TokenURL string
	// Endpoint overrides the Classroom API base URL when set.
	Endpoint       string
	PageSize       int64
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	HTTPClient     *http.Client
	Logger         *zap.Logger
}

// Client talks to the OAuth provider and the Classroom directory API.
type Client struct {
	oauth      *oauth2.Config
	endpoint   string
	pageSize   int64
	timeout    time.Duration
	maxRetries int
	baseDelay  time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a Client with sane defaults.
func NewClient(cfg Config) *Client {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	endpoint.AuthStyle = oauth2.AuthStyleInParams

	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 250 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		endpoint:   cfg.Endpoint,
		pageSize:   cfg.PageSize,
		timeout:    cfg.RequestTimeout,
		maxRetries: cfg.MaxRetries,
		baseDelay:  cfg.RetryBaseDelay,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}
}

// AuthCodeURL returns the consent page URL requesting offline access.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

// Exchange trades a single-use authorization code for credentials. It is never retried.
func (c *Client) Exchange(ctx context.Context, code string) (*Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, fmt.Errorf("%w: empty authorization code", ErrExchange)
	}

	ctx, cancel := context.WithTimeout(c.baseContext(ctx), c.timeout)
	defer cancel()

	tok, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("%w: provider returned no access token", ErrExchange)
	}

	scope, _ := tok.Extra("scope").(string)
	return &Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Scope:        scope,
		Expiry:       tok.Expiry,
	}, nil
}

// Profile resolves the caller's own profile.
func (c *Client) Profile(ctx context.Context, tok *Token) (*Person, error) {
	svc, err := c.service(ctx, tok)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfile, err)
	}

	var profile *classroomapi.UserProfile
	err = c.call(ctx, "userProfiles.get", func(callCtx context.Context) error {
		res, err := svc.UserProfiles.Get("me").Context(callCtx).Do()
		if err != nil {
			return err
		}
		profile = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProfile, err)
	}

	person := personFromProfile(profile, "")
	if !person.Resolvable() {
		return nil, fmt.Errorf("%w: profile lacks subject id or display name", ErrProfile)
	}
	return &person, nil
}

// ListCourses returns the caller's active courses where they are listed with role.
func (c *Client) ListCourses(ctx context.Context, tok *Token, role CourseRole) ([]Course, error) {
	svc, err := c.service(ctx, tok)
	if err != nil {
		return nil, err
	}

	var courses []Course
	pageToken := ""
	for {
		var res *classroomapi.ListCoursesResponse
		err := c.call(ctx, "courses.list", func(callCtx context.Context) error {
			call := svc.Courses.List().CourseStates(activeCourseState).PageSize(c.pageSize).Context(callCtx)
			if role == AsTeacher {
				call = call.TeacherId("me")
			} else {
				call = call.StudentId("me")
			}
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			page, err := call.Do()
			if err != nil {
				return err
			}
			res = page
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, item := range res.Courses {
			if item == nil || item.Id == "" {
				continue
			}
			courses = append(courses, courseFromAPI(item))
		}
		if res.NextPageToken == "" {
			return courses, nil
		}
		pageToken = res.NextPageToken
	}
}

// ListTeachers returns every teacher of a course, pages concatenated in provider order.
func (c *Client) ListTeachers(ctx context.Context, tok *Token, courseID string) ([]Person, error) {
	svc, err := c.service(ctx, tok)
	if err != nil {
		return nil, err
	}

	var people []Person
	pageToken := ""
	for {
		var res *classroomapi.ListTeachersResponse
		err := c.call(ctx, "courses.teachers.list", func(callCtx context.Context) error {
			call := svc.Courses.Teachers.List(courseID).PageSize(c.pageSize).Context(callCtx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			page, err := call.Do()
			if err != nil {
				return err
			}
			res = page
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, teacher := range res.Teachers {
			if teacher == nil {
				continue
			}
			people = append(people, personFromProfile(teacher.Profile, teacher.UserId))
		}
		if res.NextPageToken == "" {
			return people, nil
		}
		pageToken = res.NextPageToken
	}
}

// ListStudents returns every student of a course, pages concatenated in provider order.
func (c *Client) ListStudents(ctx context.Context, tok *Token, courseID string) ([]Person, error) {
	svc, err := c.service(ctx, tok)
	if err != nil {
		return nil, err
	}

	var people []Person
	pageToken := ""
	for {
		var res *classroomapi.ListStudentsResponse
		err := c.call(ctx, "courses.students.list", func(callCtx context.Context) error {
			call := svc.Courses.Students.List(courseID).PageSize(c.pageSize).Context(callCtx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			page, err := call.Do()
			if err != nil {
				return err
			}
			res = page
			return nil
		})
		if err != nil {
			return nil, err
		}

		for _, student := range res.Students {
			if student == nil {
				continue
			}
			people = append(people, personFromProfile(student.Profile, student.UserId))
		}
		if res.NextPageToken == "" {
			return people, nil
		}
		pageToken = res.NextPageToken
	}
}

func (c *Client) baseContext(ctx context.Context) context.Context {
	if c.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) service(ctx context.Context, tok *Token) (*classroomapi.Service, error) {
	if tok == nil || tok.AccessToken == "" {
		return nil, fmt.Errorf("classroom: missing access token")
	}
	src := c.oauth.TokenSource(c.baseContext(ctx), &oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       tok.Expiry,
	})
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(c.baseContext(ctx), src))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := classroomapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("classroom: build service: %w", err)
	}
	return svc, nil
}
