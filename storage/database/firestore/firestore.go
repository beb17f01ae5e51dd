// Package firestorerepos implements the domain repositories on Cloud Firestore.
// Each domain is stored in its own top level collection, documents are keyed by the model ID.
package firestorerepos

import (
	"context"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Collections
const (
	usersCollection             = "users"
	classesCollection           = "classes"
	attendanceCollection        = "attendance"
	attendanceRecordsCollection = "attendanceRecords"
	resultsCollection           = "results"
	resultsRecordsCollection    = "resultsRecords"
	notificationsCollection     = "notifications"
)

// Document fields shared with the web client, camelCase.
const (
	fieldClassID      = "classId"
	fieldStudentID    = "studentId"
	fieldTeacherID    = "teacherId"
	fieldAttendanceID = "attendanceId"
	fieldResultsID    = "resultsId"
	fieldExamType     = "examType"
	fieldUpdatedAt    = "updatedAt"
	fieldReadAt       = "readAt"
	fieldIsActive     = "isActive"
)

// NewClient returns a Firestore client for the project of the firebase app.
func NewClient(ctx context.Context, app *firebase.App) (*firestore.Client, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "initializing firestore")
	}
	return client, nil
}

func isNotFound(err error) bool {
	return status.Code(errors.Cause(err)) == codes.NotFound
}

// getAll decodes all documents matching q. setID sets the model ID from the document ID.
func getAll[T any](ctx context.Context, q firestore.Query, setID func(*T, string)) ([]T, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	items := make([]T, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var item T
		if err = doc.DataTo(&item); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", doc.Ref.Path)
		}
		setID(&item, doc.Ref.ID)
		items = append(items, item)
	}
	return items, nil
}

// getOne decodes the document at ref, returning notFound when it does not exist.
func getOne[T any](ctx context.Context, ref *firestore.DocumentRef, notFound error, setID func(*T, string)) (T, error) {
	var item T
	doc, err := ref.Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return item, notFound
		}
		return item, errors.Wrapf(err, "getting %s", ref.Path)
	}
	if err = doc.DataTo(&item); err != nil {
		return item, errors.Wrapf(err, "decoding %s", ref.Path)
	}
	setID(&item, doc.Ref.ID)
	return item, nil
}
