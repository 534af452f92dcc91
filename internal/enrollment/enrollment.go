// Package enrollment records which users have joined which courses.
// Membership lives on the course document's enrollments list.
package enrollment

import (
	"context"
	"log/slog"

	"github.com/p-n-ai/pai-learn/internal/course"
	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/store"
)

// Ledger adds users to courses and answers membership queries.
type Ledger struct {
	courses *store.Collection[course.Course]
}

// NewLedger creates a ledger over the course collection of st.
func NewLedger(st store.Store) *Ledger {
	return &Ledger{courses: store.NewCollection[course.Course](st, course.Collection)}
}

// Enroll adds userID to the course. Enrolling an enrolled user changes
// nothing. It does not create a progress record.
func (l *Ledger) Enroll(ctx context.Context, caller auth.Caller, userID, courseID string) (*course.Course, error) {
	if caller.ID == "" {
		return nil, apperr.New(apperr.ErrUnauthorized, "Unauthorized")
	}
	if userID == "" || courseID == "" {
		return nil, apperr.New(apperr.ErrValidation, "Missing required fields: userId, courseId")
	}

	added := false
	c, err := l.courses.Update(ctx, courseID, func(c *course.Course) error {
		if c.Enrolled(userID) {
			return nil
		}
		c.Enrollments = append(c.Enrollments, course.Enrollment{UserID: userID})
		added = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if added {
		slog.Info("user enrolled", "user_id", userID, "course_id", courseID)
	}
	return c, nil
}

// IsEnrolled reports whether userID is enrolled in the course.
func (l *Ledger) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	c, err := l.courses.Get(ctx, courseID)
	if err != nil {
		return false, err
	}
	return c.Enrolled(userID), nil
}

// EnrolledCourses returns every course userID is enrolled in, in store order.
func (l *Ledger) EnrolledCourses(ctx context.Context, userID string) ([]course.Course, error) {
	return l.courses.Scan(ctx, store.HasElem("enrollments", "userId", userID))
}
