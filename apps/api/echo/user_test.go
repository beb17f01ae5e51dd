package echoapi_test

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/tests"
)

func Test_userApi_login(t *testing.T) {
	env := setup(t)
	student := testutil.CreateStudent(t, env.usrRepo, "Hero", "hero@test.cd", "S001")
	naughty := testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog@test.cd", user.RoleStudent, false) // 😂

	login := func(email, pwd string) []byte {
		return marchallObj(t, echoapi.LoginRequest{Email: email, Password: pwd})
	}

	tests := []httpTest{
		{
			name: "Missing credentials", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{
			name: "Unknown email", body: login("nobody@test.cd", testutil.Password), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Wrong password", body: login(student.Email, "wrong"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "Inactive user", body: login(naughty.Email, testutil.Password), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/login"
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, env.serve(tt))
		})
	}

	t.Run("Logged in (case insensitive email)", func(t *testing.T) {
		rec := env.serve(httpTest{method: http.MethodPost, path: "/v1/users/login", body: login(" HERO@test.cd ", testutil.Password)})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp echoapi.LoginResponse
		unmarshal(t, rec, &resp)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, student.ID, resp.User.ID)
		assert.NotNil(t, resp.User.LastLogin)

		// the token authenticates the user
		rec = env.serve(httpTest{method: http.MethodGet, path: "/v1/users/me", token: resp.Token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var me user.User
		unmarshal(t, rec, &me)
		assert.Equal(t, student.Email, me.Email)
	})
}

func Test_userApi_register(t *testing.T) {
	env := setup(t)
	testutil.CreateUser(t, env.usrRepo, "Taken", "taken@test.cd", user.RoleTeacher, true)

	tests := []httpTest{
		{
			name: "Password required", wantCode: http.StatusBadRequest,
			body:     []byte(`{"name": "Prof", "email": "prof@test.cd"}`),
			wantData: marchallObj(t, map[string]string{"password": "password is required"}),
		},
		{
			name: "Weak password", wantCode: http.StatusBadRequest,
			body:     []byte(`{"name": "Prof", "email": "prof@test.cd", "password": "password", "password_confirm": "password"}`),
			wantData: marchallObj(t, map[string]string{"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "Email taken", wantCode: http.StatusBadRequest,
			body:     []byte(`{"name": "Prof", "email": "Taken@test.cd", "password": "Pr0f!Teach", "password_confirm": "Pr0f!Teach"}`),
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/register"
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, env.serve(tt))
		})
	}

	t.Run("Registered as pending teacher", func(t *testing.T) {
		rec := env.serve(httpTest{
			method: http.MethodPost, path: "/v1/users/register",
			body: []byte(`{"name": "Prof", "email": "prof@test.cd", "role": "admin", "password": "Pr0f!Teach", "password_confirm": "Pr0f!Teach"}`),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, user.RolePendingTeacher, usr.Role)
		assert.Nil(t, usr.ApprovedAt)

		// pending teachers can log in, but cannot use the staff endpoints yet
		tok := getToken(t, usr)
		rec = env.serve(httpTest{method: http.MethodGet, path: "/v1/classes", token: tok})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.JSONEq(t, `{"error": "account awaiting approval"}`, rec.Body.String())
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.cd", user.RoleAdmin, true)
	naughty := testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog@test.cd", user.RoleStudent, false)

	success := marchallObj(t, echoapi.SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})

	tests := []struct {
		name     string
		email    string
		wantCode int
		wantData []byte
		wantSent bool
	}{
		{name: "Invalid email", email: "lol", wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"email": "email must be a valid email address"})},
		{name: "Unknown email", email: "nobody@test.cd", wantCode: http.StatusOK, wantData: success},
		{name: "Inactive user", email: naughty.Email, wantCode: http.StatusOK, wantData: success},
		{name: "Active user", email: usr.Email, wantCode: http.StatusOK, wantData: success, wantSent: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emailsvc.ResetSentMessages()
			ht := httpTest{
				method: http.MethodPost, path: "/v1/users/password-reset",
				body:     marchallObj(t, echoapi.PasswordResetRequest{Email: tt.email}),
				wantCode: tt.wantCode, wantData: tt.wantData,
			}
			checkCodeAndData(t, ht, env.serve(ht))

			if !tt.wantSent {
				assert.Empty(t, emailsvc.SentMessages)
				return
			}
			require.Len(t, emailsvc.SentMessages, 1)
			msg := emailsvc.SentMessages[0]
			assert.Equal(t, usr.Email, msg.To[0].Address)

			// the email holds a working reset link
			link := regexp.MustCompile(`https?://\S+/password-reset/\S+`).FindString(msg.TextContent)
			require.NotEmpty(t, link, msg.TextContent)
		})
	}
}

func Test_userApi_passwordResetConfirm(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.cd", user.RoleAdmin, true)
	token, err := user.MakePasswordResetToken(usr, conf)
	require.NoError(t, err)

	const newPwd = "N3w!Passw0rd"
	body := func(tok, uid string) []byte {
		return marchallObj(t, user.ResetUserPassword{Token: tok, UID: uid, Password: newPwd, PasswordConfirm: newPwd})
	}

	tests := []httpTest{
		{name: "Bad token", body: body("lol-nope", user.EncodeUID(usr)), wantCode: http.StatusBadRequest},
		{name: "Unknown user", body: body(token, "nope"), wantCode: http.StatusBadRequest},
		{name: "Password reset", body: body(token, user.EncodeUID(usr)), wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."})},
		{name: "Token used", body: body(token, user.EncodeUID(usr)), wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/password-reset-confirm"
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, env.serve(tt))
		})
	}

	updated, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.NoError(t, updated.CheckPassword(newPwd))
}

func Test_userApi_refreshToken(t *testing.T) {
	env := setup(t)
	student := testutil.CreateStudent(t, env.usrRepo, "Hero", "hero@test.cd", "S001")
	naughty := testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog@test.cd", user.RoleStudent, false)

	now := time.Now()
	claims := echoapi.GetUserClaims(conf, student, now.Add(-2*conf.Server.JWTRefreshExpirationDelta).Unix()) // older than threshold
	unrefreshable, err := echoapi.GenerateToken(conf, claims)
	require.NoError(t, err)

	expiredClaims := echoapi.GetUserClaims(conf, student)
	expiredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	expired, err := echoapi.GenerateToken(conf, expiredClaims)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Expired token", token: expired, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshable, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users/token-refresh"
		t.Run(tt.name, func(t *testing.T) {
			rec := env.serve(tt)
			if tt.wantCode != http.StatusOK {
				checkCodeAndData(t, tt, rec)
				return
			}
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			var resp echoapi.LoginResponse
			unmarshal(t, rec, &resp)
			assert.NotEmpty(t, resp.Token)
			assert.Equal(t, student.ID, resp.User.ID)
		})
	}
}

func Test_userApi_query(t *testing.T) {
	env := setup(t)

	now := time.Now()
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.cd", user.RoleAdmin, true, now.Add(1*time.Hour))
	teacher := testutil.CreateUser(t, env.usrRepo, "Teacher", "teacher@test.cd", user.RoleTeacher, true, now.Add(2*time.Hour))
	student := testutil.CreateUser(t, env.usrRepo, "Hero", "hero@test.cd", user.RoleStudent, true, now.Add(3*time.Hour))
	naughty := testutil.CreateUser(t, env.usrRepo, "N Dog", "ndog@test.cd", user.RoleStudent, false, now.Add(4*time.Hour))

	adminToken := getToken(t, admin)
	path := func(v url.Values) string { return "/v1/users?" + v.Encode() }

	tests := []httpTest{
		{name: "Auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Admin required", path: "/v1/users", token: getToken(t, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "Get all (newest first)", path: "/v1/users", token: adminToken, wantData: marchallList(t, naughty, student, teacher, admin)},
		{name: "search (unknown)", path: path(url.Values{"search": {"lol"}}), token: adminToken, wantData: marchallList(t)},
		{name: "search=HER", path: path(url.Values{"search": {"HER"}}), token: adminToken, wantData: marchallList(t, student, teacher)},
		{name: "role=student", path: path(url.Values{"role": {user.RoleStudent}}), token: adminToken, wantData: marchallList(t, naughty, student)},
		{
			name: "role=admin,teacher", path: path(url.Values{"role": {user.RoleAdmin, user.RoleTeacher}}),
			token: adminToken, wantData: marchallList(t, teacher, admin),
		},
		{name: "is_active=false", path: path(url.Values{"is_active": {"false"}}), token: adminToken, wantData: marchallList(t, naughty)},
		{name: "order by name", path: path(url.Values{"ordering": {"name"}}), token: adminToken, wantData: marchallList(t, admin, student, naughty, teacher)},
		{name: "unknown ordering ignored", path: path(url.Values{"ordering": {"password_hash"}}), token: adminToken, wantData: marchallList(t, naughty, student, teacher, admin)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, env.serve(tt))
		})
	}
}

func Test_userApi_detail(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.cd", user.RoleAdmin, true)
	student := testutil.CreateStudent(t, env.usrRepo, "Hero", "hero@test.cd", "S001")
	other := testutil.CreateStudent(t, env.usrRepo, "Other", "other@test.cd", "S002")

	adminToken := getToken(t, admin)
	stdToken := getToken(t, student)

	runTests(t, env, []httpTest{
		{name: "Self", method: http.MethodGet, path: "/v1/users/" + student.ID, token: stdToken, wantData: marchallObj(t, student)},
		{name: "Admin", method: http.MethodGet, path: "/v1/users/" + student.ID, token: adminToken, wantData: marchallObj(t, student)},
		{
			name: "Someone else", method: http.MethodGet, path: "/v1/users/" + other.ID, token: stdToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Unknown", method: http.MethodGet, path: "/v1/users/nope", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "Non admin cannot change own role", method: http.MethodPut, path: "/v1/users/" + student.ID, token: stdToken,
			body: []byte(`{"role": "admin"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Duplicate student ID", method: http.MethodPut, path: "/v1/users/" + other.ID, token: adminToken,
			body: []byte(`{"student_id": "S001"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"student_id": "a user with this student ID already exists"}),
		},
		{
			name: "Non admin cannot delete", method: http.MethodDelete, path: "/v1/users/" + student.ID, token: stdToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Admin cannot delete themselves", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	})

	t.Run("Update self", func(t *testing.T) {
		rec := env.serve(httpTest{
			method: http.MethodPut, path: "/v1/users/" + student.ID, token: stdToken,
			body: []byte(`{"name": "  Super Hero ", "phone": "+243 81 000 0000"}`),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, "Super Hero", usr.Name)
		assert.Equal(t, "+243 81 000 0000", usr.Phone)
		assert.Equal(t, student.Email, usr.Email)
	})

	t.Run("Admin deletes", func(t *testing.T) {
		rec := env.serve(httpTest{method: http.MethodDelete, path: "/v1/users/" + other.ID, token: adminToken})
		assert.Equal(t, http.StatusNoContent, rec.Code)
		_, err := env.usrRepo.GetUser(context.Background(), user.GetFilter{ID: other.ID})
		assert.ErrorIs(t, err, user.ErrNotFound)
	})
}

func Test_userApi_roles(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.cd", user.RoleAdmin, true)
	student := testutil.CreateStudent(t, env.usrRepo, "Hero", "hero@test.cd", "S001")
	adminToken := getToken(t, admin)

	runTests(t, env, []httpTest{
		{name: "Roles", method: http.MethodGet, path: "/v1/users/roles", token: adminToken, wantData: marchallObj(t, user.Roles)},
		{name: "Get role", method: http.MethodGet, path: "/v1/users/" + student.ID + "/role", token: getToken(t, student), wantData: []byte(`{"role": "student"}`)},
		{
			name: "Invalid role", method: http.MethodPut, path: "/v1/users/" + student.ID + "/role", token: adminToken,
			body: []byte(`{"role": "janitor"}`), wantCode: http.StatusBadRequest, wantData: []byte(`{"role": "invalid role"}`),
		},
		{
			name: "Only admins set roles", method: http.MethodPut, path: "/v1/users/" + student.ID + "/role", token: getToken(t, student),
			body: []byte(`{"role": "admin"}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	})

	t.Run("Set role", func(t *testing.T) {
		rec := env.serve(httpTest{
			method: http.MethodPut, path: "/v1/users/" + student.ID + "/role", token: adminToken, body: []byte(`{"role": " Teacher "}`),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var usr user.User
		unmarshal(t, rec, &usr)
		assert.Equal(t, user.RoleTeacher, usr.Role)
	})
}

func Test_userApi_destroyMultiple(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.usrRepo, "Admin", "admin@test.cd", user.RoleAdmin, true)
	std1 := testutil.CreateStudent(t, env.usrRepo, "One", "one@test.cd", "S001")
	std2 := testutil.CreateStudent(t, env.usrRepo, "Two", "two@test.cd", "S002")
	adminToken := getToken(t, admin)

	runTests(t, env, []httpTest{
		{
			name: "Cannot delete self", method: http.MethodDelete, path: "/v1/users?id=" + std1.ID + "&id=" + admin.ID,
			token: adminToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "Deleted", method: http.MethodDelete, path: "/v1/users?id=" + std1.ID + "&id=" + std2.ID, token: adminToken, wantCode: http.StatusNoContent},
	})

	users, err := env.usrRepo.QueryUsers(context.Background(), &user.QueryFilter{}, nil)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
