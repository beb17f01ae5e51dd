package echoapi_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/notification"
	"github.com/trezcool/shule/tests"
)

func Test_notificationApi_send(t *testing.T) {
	env := setup(t)
	f := newClassFixture(t, env)
	tok := getToken(t, f.teacher)

	runTests(t, env, []httpTest{
		{name: "Students cannot send", method: http.MethodPost, path: "/v1/notifications", token: getToken(t, f.std1), body: []byte(`{}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "Fields required", method: http.MethodPost, path: "/v1/notifications", token: tok, body: []byte(`{"type": "spam"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title": "this field is required", "message": "this field is required", "type": "type must be one of admin, attendance, results or general"}`),
		},
		{
			name: "Unknown student", method: http.MethodPost, path: "/v1/notifications", token: tok,
			body: []byte(`{"student_id": "nope", "title": "Hi", "message": "Hello"}`), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
		{
			name: "No recipients", method: http.MethodPost, path: "/v1/notifications/bulk", token: tok,
			body: []byte(`{"title": "Hi", "message": "Hello", "student_ids": ["", " "]}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"student_ids": "no recipients selected"}`),
		},
		{
			name: "Teachers cannot notify students outside their classes", method: http.MethodPost, path: "/v1/notifications", token: tok,
			body: []byte(`{"student_id": "` + f.outsider.ID + `", "title": "Hi", "message": "Hello"}`), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Teachers cannot bulk notify students outside their classes", method: http.MethodPost, path: "/v1/notifications/bulk", token: tok,
			body: []byte(`{"title": "Hi", "message": "Hello", "student_ids": ["` + f.std1.ID + `", "` + f.outsider.ID + `"]}`), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Bulk recipients must be students", method: http.MethodPost, path: "/v1/notifications/bulk", token: getToken(t, f.admin),
			body: []byte(`{"title": "Hi", "message": "Hello", "student_ids": ["` + f.std1.ID + `", "nope", "` + f.teacher.ID + `"]}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"student_ids": "unknown students: nope, ` + f.teacher.ID + `"}`),
		},
		{
			name: "Only admins broadcast", method: http.MethodPost, path: "/v1/notifications/broadcast", token: tok,
			body: []byte(`{"title": "Hi", "message": "Hello", "target": "all"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Broadcast class requires a class", method: http.MethodPost, path: "/v1/notifications/broadcast", token: getToken(t, f.admin),
			body: []byte(`{"title": "Hi", "message": "Hello", "target": "class"}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"class_id": "this field is required"}`),
		},
	})

	t.Run("Send", func(t *testing.T) {
		rec := env.serve(httpTest{
			method: http.MethodPost, path: "/v1/notifications", token: tok,
			body: []byte(`{"student_id": "` + f.std1.ID + `", "title": " Homework ", "message": "Page 12"}`),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var notif notification.Notification
		unmarshal(t, rec, &notif)
		assert.Equal(t, f.std1.ID, notif.StudentID)
		assert.Equal(t, "Homework", notif.Title)
		assert.Equal(t, notification.TypeGeneral, notif.Type)
		assert.False(t, notif.Read)
	})

	t.Run("Admins notify any student", func(t *testing.T) {
		rec := env.serve(httpTest{
			method: http.MethodPost, path: "/v1/notifications", token: getToken(t, f.admin),
			body: []byte(`{"student_id": "` + f.outsider.ID + `", "title": "Fees", "message": "Due Friday", "type": "admin"}`),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("Bulk", func(t *testing.T) {
		rec := env.serve(httpTest{
			method: http.MethodPost, path: "/v1/notifications/bulk", token: tok,
			body: []byte(`{"title": "Trip", "message": "Bring a lunch", "student_ids": ["` + f.std1.ID + `", "` + f.std2.ID + `", "` + f.std1.ID + `"]}`),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"count": 2}`, rec.Body.String())

		notifs, err := env.notifRepo.QueryNotifications(context.Background(), f.std2.ID, notification.Limit)
		require.NoError(t, err)
		require.Len(t, notifs, 1)
		assert.Equal(t, notification.TypeAdmin, notifs[0].Type)
	})

	t.Run("Broadcast", func(t *testing.T) {
		tests := []struct {
			name string
			body string
			want int
		}{
			{name: "all", body: `{"title": "Holiday", "message": "No school", "target": "ALL"}`, want: 3},
			{name: "class", body: `{"title": "Exam", "message": "Tomorrow", "target": "class", "class_id": "` + f.cls.ID + `"}`, want: 2},
		}
		for _, tt := range tests {
			rec := env.serve(httpTest{method: http.MethodPost, path: "/v1/notifications/broadcast", token: getToken(t, f.admin), body: []byte(tt.body)})
			require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
			var resp struct{ Count int }
			unmarshal(t, rec, &resp)
			assert.Equal(t, tt.want, resp.Count, tt.name)
		}
	})
}

func Test_meApi(t *testing.T) {
	env := setup(t)
	f := newClassFixture(t, env)
	teacherTok := getToken(t, f.teacher)
	stdTok := getToken(t, f.std1)

	runTests(t, env, []httpTest{
		{name: "Students only", method: http.MethodGet, path: "/v1/me/notifications", token: teacherTok, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "No notifications", method: http.MethodGet, path: "/v1/me/notifications", token: stdTok, wantData: marchallList(t)},
		{name: "No unread notifications", method: http.MethodGet, path: "/v1/me/notifications/unread-count", token: stdTok, wantData: []byte(`{"count": 0}`)},
		{name: "No grades", method: http.MethodGet, path: "/v1/me/grades", token: stdTok, wantData: marchallList(t)},
	})

	// attendance & results generate notifications
	rec := env.serve(httpTest{
		method: http.MethodPost, path: "/v1/classes/" + f.cls.ID + "/attendance", token: teacherTok,
		body: []byte(`{"date": "2024-02-01", "records": [{"student_id": "S001", "status": "late"}, {"student_id": "S002", "status": "present"}]}`),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.serve(httpTest{
		method: http.MethodPost, path: "/v1/classes/" + f.cls.ID + "/results", token: teacherTok,
		body: []byte(`{"exam_type": "final", "records": [{"student_id": "S001", "score": 72}]}`),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	other := testutil.CreateStudent(t, env.usrRepo, "Dan", "dan@test.cd", "S009")
	otherNotif, err := env.notifRepo.CreateNotifications(context.Background(), []notification.Notification{{StudentID: other.ID, Title: "Hi", Message: "Hello"}})
	require.NoError(t, err)

	t.Run("Attendance", func(t *testing.T) {
		rec := env.serve(httpTest{method: http.MethodGet, path: "/v1/me/attendance", token: stdTok})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"summary":{"present":0,"absent":0,"late":1,"total":1,"percentage":0}`)
	})

	t.Run("Results & grades", func(t *testing.T) {
		rec := env.serve(httpTest{method: http.MethodGet, path: "/v1/me/results", token: stdTok})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"score":72`)

		rec = env.serve(httpTest{method: http.MethodGet, path: "/v1/me/grades", token: stdTok})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, rec.Body.String(), `"grade":"C"`)
	})

	t.Run("Notifications", func(t *testing.T) {
		rec := env.serve(httpTest{method: http.MethodGet, path: "/v1/me/notifications/unread-count", token: stdTok})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"count": 2}`, rec.Body.String())

		rec = env.serve(httpTest{method: http.MethodGet, path: "/v1/me/notifications", token: stdTok})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var notifs []notification.Notification
		unmarshal(t, rec, &notifs)
		require.Len(t, notifs, 2)

		// someone else's notification is not found
		rec = env.serve(httpTest{method: http.MethodPost, path: "/v1/me/notifications/" + otherNotif[0].ID + "/read", token: stdTok})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = env.serve(httpTest{method: http.MethodPost, path: "/v1/me/notifications/" + notifs[0].ID + "/read", token: stdTok})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var read notification.Notification
		unmarshal(t, rec, &read)
		assert.True(t, read.Read)
		assert.NotNil(t, read.ReadAt)

		rec = env.serve(httpTest{method: http.MethodGet, path: "/v1/me/notifications/unread-count", token: stdTok})
		assert.JSONEq(t, `{"count": 1}`, rec.Body.String())
	})
}
