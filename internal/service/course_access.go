package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/classroom-engagement-api/internal/models"
	appErrors "github.com/noah-isme/classroom-engagement-api/pkg/errors"
)

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	IsTeacher(ctx context.Context, courseID, identityID string) (bool, error)
}

type membershipReader interface {
	IsEnrolled(ctx context.Context, courseID, identityID string) (bool, error)
}

// courseGuard resolves a course and checks the caller's relationship to it.
type courseGuard struct {
	courses     courseReader
	memberships membershipReader
}

func newCourseGuard(courses courseReader, memberships membershipReader) courseGuard {
	return courseGuard{courses: courses, memberships: memberships}
}

func (g courseGuard) load(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := g.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (g courseGuard) isTeacher(ctx context.Context, claims *models.JWTClaims, courseID string) (bool, error) {
	if claims == nil {
		return false, appErrors.ErrUnauthorized
	}
	ok, err := g.courses.IsTeacher(ctx, courseID, claims.UserID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course access")
	}
	return ok, nil
}

// requireTeacher loads the course and fails unless the caller is in its teacher set.
func (g courseGuard) requireTeacher(ctx context.Context, claims *models.JWTClaims, courseID string) (*models.Course, error) {
	course, err := g.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ok, err := g.isTeacher(ctx, claims, courseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only course teachers can perform this action")
	}
	return course, nil
}

// requireMember loads the course and fails unless the caller teaches it or is enrolled in it.
func (g courseGuard) requireMember(ctx context.Context, claims *models.JWTClaims, courseID string) (*models.Course, error) {
	course, err := g.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	ok, err := g.isTeacher(ctx, claims, courseID)
	if err != nil {
		return nil, err
	}
	if ok {
		return course, nil
	}
	enrolled, err := g.memberships.IsEnrolled(ctx, courseID, claims.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course access")
	}
	if !enrolled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this course")
	}
	return course, nil
}
