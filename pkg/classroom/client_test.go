package classroom

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	server         *httptest.Server
	courseCalls    int32
	teacherFailing int32
	lastCourseQS   url.Values
	denyTeachers   bool
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{}
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Bad Request"}`))
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"access_token":  "access-1",
			"token_type":    "Bearer",
			"refresh_token": "refresh-1",
			"expires_in":    3600,
			"scope":         "classroom.courses.readonly",
		})
	})

	mux.HandleFunc("/v1/userProfiles/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":           "g-teacher",
			"name":         map[string]string{"fullName": "Ada Lovelace"},
			"emailAddress": "ada@example.com",
			"photoUrl":     "//lh3.example.com/ada.png",
		})
	})

	mux.HandleFunc("/v1/courses", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fp.courseCalls, 1)
		fp.lastCourseQS = r.URL.Query()
		if r.URL.Query().Get("studentId") == "me" {
			writeJSON(w, http.StatusForbidden, map[string]interface{}{
				"error": map[string]interface{}{"code": 403, "message": "The caller does not have permission", "status": "PERMISSION_DENIED"},
			})
			return
		}
		switch r.URL.Query().Get("pageToken") {
		case "":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"courses":       []map[string]string{{"id": "c1", "name": "Biology", "section": "Period 1", "courseState": "ACTIVE"}},
				"nextPageToken": "p2",
			})
		default:
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"courses": []map[string]string{{"id": "c2", "name": "Chemistry", "courseState": "ACTIVE"}},
			})
		}
	})

	mux.HandleFunc("/v1/courses/c1/teachers", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&fp.teacherFailing, -1) >= 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"error": map[string]interface{}{"code": 503, "message": "backend unavailable"},
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"teachers": []map[string]interface{}{
				{"userId": "g-teacher", "profile": map[string]interface{}{"id": "g-teacher", "name": map[string]string{"fullName": "Ada Lovelace"}}},
				{"userId": "g-co", "profile": map[string]interface{}{"name": map[string]string{"givenName": "Grace", "familyName": "Hopper"}}},
			},
		})
	})

	mux.HandleFunc("/v1/courses/c1/students", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"students":      []map[string]interface{}{{"userId": "s1", "profile": map[string]interface{}{"id": "s1", "name": map[string]string{"fullName": "Student One"}}}},
				"nextPageToken": "next",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"students": []map[string]interface{}{{"userId": "s2", "profile": map[string]interface{}{"id": "s2", "name": map[string]string{"fullName": "Student Two"}}}},
		})
	})

	mux.HandleFunc("/v1/courses/locked/students", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": map[string]interface{}{"code": 404, "message": "not found"},
		})
	})

	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestClient(fp *fakeProvider) *Client {
	return NewClient(Config{
		ClientID:       "client",
		ClientSecret:   "secret",
		RedirectURL:    "http://localhost/callback",
		TokenURL:       fp.server.URL + "/token",
		AuthURL:        fp.server.URL + "/auth",
		Endpoint:       fp.server.URL + "/",
		PageSize:       1,
		RequestTimeout: 2 * time.Second,
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		HTTPClient:     fp.server.Client(),
	})
}

func TestClientExchange(t *testing.T) {
	fp := newFakeProvider(t)
	client := newTestClient(fp)

	tok, err := client.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "access-1", tok.AccessToken)
	assert.Equal(t, "refresh-1", tok.RefreshToken)
	assert.Equal(t, "classroom.courses.readonly", tok.Scope)
	assert.False(t, tok.Expiry.IsZero())
}

func TestClientExchangeRejectedCode(t *testing.T) {
	fp := newFakeProvider(t)
	client := newTestClient(fp)

	_, err := client.Exchange(context.Background(), "used-code")
	require.ErrorIs(t, err, ErrExchange)

	_, err = client.Exchange(context.Background(), "  ")
	require.ErrorIs(t, err, ErrExchange)
}

func TestClientAuthCodeURL(t *testing.T) {
	fp := newFakeProvider(t)
	client := newTestClient(fp)

	raw := client.AuthCodeURL("state-1")
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(raw, fp.server.URL+"/auth"))
	assert.Equal(t, "offline", parsed.Query().Get("access_type"))
	assert.Equal(t, "state-1", parsed.Query().Get("state"))
}

func TestClientProfile(t *testing.T) {
	fp := newFakeProvider(t)
	client := newTestClient(fp)

	person, err := client.Profile(context.Background(), &Token{AccessToken: "access-1"})
	require.NoError(t, err)
	assert.Equal(t, "g-teacher", person.ID)
	assert.Equal(t, "Ada Lovelace", person.Name)
	assert.Equal(t, "https://lh3.example.com/ada.png", person.PhotoURL)
}

func TestClientListCoursesPaginates(t *testing.T) {
	fp := newFakeProvider(t)
	client := newTestClient(fp)

	courses, err := client.ListCourses(context.Background(), &Token{AccessToken: "access-1"}, AsTeacher)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "c1", courses[0].ID)
	assert.Equal(t, "Period 1", courses[0].Section)
	assert.Equal(t, "c2", courses[1].ID)
	assert.EqualValues(t, 2, atomic.LoadInt32(&fp.courseCalls))
	assert.Equal(t, "me", fp.lastCourseQS.Get("teacherId"))
	assert.Equal(t, "ACTIVE", fp.lastCourseQS.Get("courseStates"))
}

func TestClientListCoursesPermissionDenied(t *testing.T) {
	fp := newFakeProvider(t)
	client := newTestClient(fp)

	_, err := client.ListCourses(context.Background(), &Token{AccessToken: "access-1"}, AsStudent)
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.EqualValues(t, 1, atomic.LoadInt32(&fp.courseCalls))
}

func TestClientListTeachersRetriesTransientFailure(t *testing.T) {
	fp := newFakeProvider(t)
	atomic.StoreInt32(&fp.teacherFailing, 2)
	client := newTestClient(fp)

	teachers, err := client.ListTeachers(context.Background(), &Token{AccessToken: "access-1"}, "c1")
	require.NoError(t, err)
	require.Len(t, teachers, 2)
	assert.Equal(t, "Ada Lovelace", teachers[0].Name)
	assert.Equal(t, "g-co", teachers[1].ID)
	assert.Equal(t, "Grace Hopper", teachers[1].Name)
}

func TestClientListTeachersGivesUpAfterRetries(t *testing.T) {
	fp := newFakeProvider(t)
	atomic.StoreInt32(&fp.teacherFailing, 5)
	client := newTestClient(fp)

	_, err := client.ListTeachers(context.Background(), &Token{AccessToken: "access-1"}, "c1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, err.Error(), "courses.teachers.list")
	// one attempt plus MaxRetries
	assert.EqualValues(t, 2, atomic.LoadInt32(&fp.teacherFailing))
}

func TestClientListStudentsConcatenatesPages(t *testing.T) {
	fp := newFakeProvider(t)
	client := newTestClient(fp)

	students, err := client.ListStudents(context.Background(), &Token{AccessToken: "access-1"}, "c1")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "s1", students[0].ID)
	assert.Equal(t, "s2", students[1].ID)
}

func TestClientListStudentsDoesNotRetryClientErrors(t *testing.T) {
	fp := newFakeProvider(t)
	client := newTestClient(fp)

	_, err := client.ListStudents(context.Background(), &Token{AccessToken: "access-1"}, "locked")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "courses.students.list")
}
