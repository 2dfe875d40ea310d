package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breadjournal/server/internal/application"
	"github.com/breadjournal/server/internal/domain/entity"
	"github.com/breadjournal/server/internal/interface/middleware"
	"github.com/breadjournal/server/pkg/helpers"
	"github.com/breadjournal/server/pkg/validation"
)

var initValidation sync.Once

type memUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  []*entity.User
}

func (r *memUserRepo) Create(u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = "u-" + strconv.Itoa(r.nextID)
	cp := *u
	r.users = append(r.users, &cp)
	return nil
}

func (r *memUserRepo) find(pred func(*entity.User) bool) *entity.User {
	for _, u := range r.users {
		if pred(u) {
			cp := *u
			return &cp
		}
	}
	return nil
}

func (r *memUserRepo) GetByID(id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *entity.User) bool { return u.ID == id }), nil
}

func (r *memUserRepo) GetByEmail(email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *entity.User) bool { return u.Email == email }), nil
}

func (r *memUserRepo) GetByUsernameOrEmail(v string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *entity.User) bool { return u.Username == v || u.Email == v }), nil
}

func (r *memUserRepo) FindConflict(username, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(func(u *entity.User) bool { return u.Username == username || u.Email == email }), nil
}

func (r *memUserRepo) SetVerified(email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u.Verified = true
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) UpdatePasswordByEmail(email, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u.PasswordHash = hash
		}
	}
	return nil
}

type memCodeRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   []*entity.VerificationCode
}

func (r *memCodeRepo) Create(c *entity.VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	cp := *c
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *memCodeRepo) matching(email string, purpose entity.Purpose) []*entity.VerificationCode {
	var out []*entity.VerificationCode
	for _, c := range r.rows {
		if c.Email == email && c.Purpose == purpose {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *memCodeRepo) Latest(email string, purpose entity.Purpose) (*entity.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m := r.matching(email, purpose); len(m) > 0 {
		cp := *m[0]
		return &cp, nil
	}
	return nil, nil
}

func (r *memCodeRepo) LatestUnexpired(email string, purpose entity.Purpose) (*entity.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.matching(email, purpose) {
		if c.ExpiresAt.After(time.Now()) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memCodeRepo) DeleteAll(email string, purpose entity.Purpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.rows[:0]
	for _, c := range r.rows {
		if !(c.Email == email && c.Purpose == purpose) {
			kept = append(kept, c)
		}
	}
	r.rows = kept
	return nil
}

type nopPublisher struct{}

func (nopPublisher) PublishJSON(ctx context.Context, body any) error { return nil }

type apiEnv struct {
	router *gin.Engine
	users  *memUserRepo
	codes  *memCodeRepo
	jwt    *helpers.JWTManager
}

func newAPI(t *testing.T) *apiEnv {
	t.Helper()
	initValidation.Do(func() {
		gin.SetMode(gin.TestMode)
		validation.Init()
	})

	users := &memUserRepo{}
	codes := &memCodeRepo{}
	jwt := helpers.NewJWTManager("test-secret", 7*24*time.Hour)
	mgr := application.NewCodeManager(codes, nopPublisher{}, nil, "Bread Journal", 10*time.Minute, 30*time.Second, true)
	svc := application.NewAuthService(users, mgr, jwt, nil)
	h := NewAuthHandler(svc, nil)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/signup", h.Signup)
	api.POST("/auth/verify", h.Verify)
	api.POST("/auth/resend", h.Resend)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/forgot-password", h.ForgotPassword)
	api.POST("/auth/reset-password", h.ResetPassword)
	api.GET("/auth/me", middleware.RequireAuth(jwt), h.Me)

	return &apiEnv{router: r, users: users, codes: codes, jwt: jwt}
}

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

func (e *apiEnv) post(t *testing.T, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func (e *apiEnv) get(t *testing.T, path, token string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func (e *apiEnv) storedCode(t *testing.T, email string, purpose entity.Purpose) string {
	t.Helper()
	c, err := e.codes.Latest(email, purpose)
	require.NoError(t, err)
	require.NotNil(t, c, "no code stored for %s/%s", email, purpose)
	return c.Code
}

func TestSignupEndpoint(t *testing.T) {
	t.Run("returns 201 with pending flag and no token", func(t *testing.T) {
		e := newAPI(t)
		w, env := e.post(t, "/api/auth/signup", gin.H{
			"username": "alice", "email": "a@x.com", "password": "secret1",
		})
		assert.Equal(t, http.StatusCreated, w.Code)
		assert.True(t, env.Success)
		assert.Contains(t, string(env.Data), `"pending":true`)
		assert.Contains(t, string(env.Data), `"a@x.com"`)
		assert.NotContains(t, string(env.Data), "token")
	})

	t.Run("rejects short password at binding", func(t *testing.T) {
		e := newAPI(t)
		w, env := e.post(t, "/api/auth/signup", gin.H{
			"username": "alice", "email": "a@x.com", "password": "short",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, string(env.Error), "password")
	})

	t.Run("rejects bad email at binding", func(t *testing.T) {
		e := newAPI(t)
		w, _ := e.post(t, "/api/auth/signup", gin.H{
			"username": "alice", "email": "not-an-email", "password": "secret1",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("duplicate username answers 409", func(t *testing.T) {
		e := newAPI(t)
		e.post(t, "/api/auth/signup", gin.H{"username": "alice", "email": "a@x.com", "password": "secret1"})
		w, env := e.post(t, "/api/auth/signup", gin.H{"username": "alice", "email": "b@x.com", "password": "secret1"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "username already taken", env.Message)
	})
}

func TestVerifyEndpoint(t *testing.T) {
	e := newAPI(t)
	e.post(t, "/api/auth/signup", gin.H{"username": "alice", "email": "a@x.com", "password": "secret1"})
	code := e.storedCode(t, "a@x.com", entity.PurposeEmailVerification)

	t.Run("wrong code answers 400", func(t *testing.T) {
		wrong := "000000"
		if wrong == code {
			wrong = "000001"
		}
		w, _ := e.post(t, "/api/auth/verify", gin.H{"email": "a@x.com", "code": wrong})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("correct code returns a working session", func(t *testing.T) {
		w, env := e.post(t, "/api/auth/verify", gin.H{"email": "a@x.com", "code": code})
		require.Equal(t, http.StatusOK, w.Code)

		var data struct {
			Token string `json:"token"`
			User  struct {
				Username string `json:"username"`
			} `json:"user"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &data))
		assert.Equal(t, "alice", data.User.Username)

		mw, me := e.get(t, "/api/auth/me", data.Token)
		assert.Equal(t, http.StatusOK, mw.Code)
		assert.Contains(t, string(me.Data), `"alice"`)
	})

	t.Run("replay answers 400", func(t *testing.T) {
		w, _ := e.post(t, "/api/auth/verify", gin.H{"email": "a@x.com", "code": code})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestLoginEndpoint(t *testing.T) {
	e := newAPI(t)
	e.post(t, "/api/auth/signup", gin.H{"username": "alice", "email": "a@x.com", "password": "secret1"})

	t.Run("unverified account answers 401 with pending payload", func(t *testing.T) {
		w, env := e.post(t, "/api/auth/login", gin.H{"username": "alice", "password": "secret1"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, string(env.Error), `"pending":true`)
		assert.Contains(t, string(env.Error), `"a@x.com"`)
	})

	code := e.storedCode(t, "a@x.com", entity.PurposeEmailVerification)
	e.post(t, "/api/auth/verify", gin.H{"email": "a@x.com", "code": code})

	t.Run("unknown user and wrong password give the same answer", func(t *testing.T) {
		w1, env1 := e.post(t, "/api/auth/login", gin.H{"username": "nobody", "password": "secret1"})
		w2, env2 := e.post(t, "/api/auth/login", gin.H{"username": "alice", "password": "wrong-password"})
		assert.Equal(t, http.StatusUnauthorized, w1.Code)
		assert.Equal(t, http.StatusUnauthorized, w2.Code)
		assert.Equal(t, env1.Message, env2.Message)
	})

	t.Run("login by email works", func(t *testing.T) {
		w, env := e.post(t, "/api/auth/login", gin.H{"username": "a@x.com", "password": "secret1"})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, string(env.Data), `"token"`)
	})
}

func TestResendEndpoint(t *testing.T) {
	e := newAPI(t)

	t.Run("first request sends", func(t *testing.T) {
		w, _ := e.post(t, "/api/auth/resend", gin.H{"email": "a@x.com", "purpose": "email_verification"})
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("second request within cooldown answers 429", func(t *testing.T) {
		w, _ := e.post(t, "/api/auth/resend", gin.H{"email": "a@x.com", "purpose": "email_verification"})
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
	})

	t.Run("unknown purpose rejected at binding", func(t *testing.T) {
		w, _ := e.post(t, "/api/auth/resend", gin.H{"email": "a@x.com", "purpose": "magic_link"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestForgotPasswordEndpoint(t *testing.T) {
	e := newAPI(t)
	e.post(t, "/api/auth/signup", gin.H{"username": "alice", "email": "a@x.com", "password": "secret1"})

	wReal, envReal := e.post(t, "/api/auth/forgot-password", gin.H{"email": "a@x.com"})
	wGhost, envGhost := e.post(t, "/api/auth/forgot-password", gin.H{"email": "ghost@x.com"})

	// registered and unregistered emails are indistinguishable from outside
	assert.Equal(t, wReal.Code, wGhost.Code)
	assert.Equal(t, envReal.Message, envGhost.Message)
	assert.JSONEq(t, string(envReal.Data), string(envGhost.Data))

	// but only the registered one got a code
	c, err := e.codes.Latest("a@x.com", entity.PurposePasswordReset)
	require.NoError(t, err)
	assert.NotNil(t, c)
	g, err := e.codes.Latest("ghost@x.com", entity.PurposePasswordReset)
	require.NoError(t, err)
	assert.Nil(t, g)
}

func TestResetPasswordEndpoint(t *testing.T) {
	e := newAPI(t)
	e.post(t, "/api/auth/signup", gin.H{"username": "alice", "email": "a@x.com", "password": "secret1"})
	vcode := e.storedCode(t, "a@x.com", entity.PurposeEmailVerification)
	e.post(t, "/api/auth/verify", gin.H{"email": "a@x.com", "code": vcode})

	e.post(t, "/api/auth/forgot-password", gin.H{"email": "a@x.com"})
	rcode := e.storedCode(t, "a@x.com", entity.PurposePasswordReset)

	t.Run("short replacement rejected at binding", func(t *testing.T) {
		w, _ := e.post(t, "/api/auth/reset-password", gin.H{"email": "a@x.com", "code": rcode, "new_password": "tiny"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("valid code rotates the password", func(t *testing.T) {
		w, _ := e.post(t, "/api/auth/reset-password", gin.H{"email": "a@x.com", "code": rcode, "new_password": "newsecret"})
		require.Equal(t, http.StatusOK, w.Code)

		wOld, _ := e.post(t, "/api/auth/login", gin.H{"username": "alice", "password": "secret1"})
		assert.Equal(t, http.StatusUnauthorized, wOld.Code)
		wNew, _ := e.post(t, "/api/auth/login", gin.H{"username": "alice", "password": "newsecret"})
		assert.Equal(t, http.StatusOK, wNew.Code)
	})

	t.Run("consumed code answers 400", func(t *testing.T) {
		w, _ := e.post(t, "/api/auth/reset-password", gin.H{"email": "a@x.com", "code": rcode, "new_password": "thirdsecret"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMeEndpoint(t *testing.T) {
	e := newAPI(t)

	t.Run("rejects anonymous", func(t *testing.T) {
		w, _ := e.get(t, "/api/auth/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("answers 404 for a token whose user is gone", func(t *testing.T) {
		token, _, err := e.jwt.Generate("u-404", "ghost", "g@x.com")
		require.NoError(t, err)
		w, _ := e.get(t, "/api/auth/me", token)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
