package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-playground/validator"
	"github.com/nudgelabs/nudged/server/auth"
	"github.com/nudgelabs/nudged/server/auth/key"
	"github.com/nudgelabs/nudged/server/cache"
	"github.com/nudgelabs/nudged/server/dispatch"
	"github.com/nudgelabs/nudged/server/models"
	"github.com/nudgelabs/nudged/server/query"
	"github.com/nudgelabs/nudged/server/repos"
	"github.com/nudgelabs/nudged/server/session"
	"github.com/nudgelabs/nudged/server/twilio"
	"github.com/nudgelabs/nudged/server/work"
	"github.com/nudgelabs/nudged/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *app {
	t.Helper()

	db, err := models.OpenTest()
	require.NoError(t, err)

	validate := validator.New()
	require.NoError(t, RegisterValidators(validate))

	keyPair, err := key.NewEphemeralKeyPair()
	require.NoError(t, err)

	registry := repos.NewRegistry(db)
	queries := query.NewBindings(registry, cache.NewStore())
	authService := auth.NewService(registry.Profiles, keyPair)
	workerPool := work.NewWorkerAdapter(db, "UTC")
	twilioClient := twilio.NewClient(shared.TwilioConfig{}, "")

	dispatcher, err := dispatch.NewScheduler(registry, queries, workerPool, twilioClient, logg)
	require.NoError(t, err)

	return &app{
		db:           db,
		registry:     registry,
		queries:      queries,
		authService:  authService,
		sessions:     session.NewManager(authService, registry.Profiles, logg),
		workerPool:   workerPool,
		dispatcher:   dispatcher,
		twilioClient: twilioClient,
		authKeyPair:  keyPair,
		validate:     validate,
	}
}

func doJSON(t *testing.T, handler http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	return recorder
}

func decodePayload(t *testing.T, recorder *httptest.ResponseRecorder) ResponsePayload {
	t.Helper()

	payload := ResponsePayload{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))

	return payload
}

func signUpUser(t *testing.T, handler http.Handler, email string) (token string, userID string) {
	t.Helper()

	recorder := doJSON(t, handler, "POST", "/signup", "", auth.SignUpDto{
		Email:     email,
		Password:  "s3cret-password",
		FirstName: "Ada",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	payload := decodePayload(t, recorder)
	data := payload.Data.(map[string]interface{})

	return data["token"].(string), data["user_id"].(string)
}

func TestHealthAndJWKS(t *testing.T) {
	router := newTestApp(t).router()

	recorder := doJSON(t, router, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, router, "GET", "/.well-known/jwks.json", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "keys")
}

func TestProtectedRoutesRequireAToken(t *testing.T) {
	router := newTestApp(t).router()

	recorder := doJSON(t, router, "GET", "/contacts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = doJSON(t, router, "GET", "/contacts", "not-a-real-token", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestSignUpLogInAndProfile(t *testing.T) {
	router := newTestApp(t).router()

	token, userID := signUpUser(t, router, "ada@example.com")
	require.NotEmpty(t, token)

	recorder := doJSON(t, router, "POST", "/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "s3cret-password",
	})
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, router, "POST", "/login", "", map[string]string{
		"email":    "ada@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = doJSON(t, router, "GET", "/profile", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	payload := decodePayload(t, recorder)
	profile := payload.Data.(map[string]interface{})
	assert.Equal(t, userID, profile["id"])
	assert.Equal(t, "ada@example.com", profile["email"])

	recorder = doJSON(t, router, "PUT", "/profile", token, map[string]string{"last_name": "Lovelace"})
	require.Equal(t, http.StatusOK, recorder.Code)
	payload = decodePayload(t, recorder)
	assert.Equal(t, "Lovelace", payload.Data.(map[string]interface{})["last_name"])
}

func TestContactRoutes(t *testing.T) {
	router := newTestApp(t).router()
	token, _ := signUpUser(t, router, "ada@example.com")

	recorder := doJSON(t, router, "POST", "/contacts", token, repos.CreateContactDto{
		Name:  "Harvey",
		Phone: "+15550001111",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	contact := decodePayload(t, recorder).Data.(map[string]interface{})
	contactID := contact["id"].(string)

	// Missing name fails validation
	recorder = doJSON(t, router, "POST", "/contacts", token, map[string]string{"email": "x@example.com"})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(t, router, "GET", "/contacts", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, decodePayload(t, recorder).Data, 1)

	recorder = doJSON(t, router, "PUT", "/contacts/"+contactID, token, map[string]string{"name": "Harvey Specter"})
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "Harvey Specter", decodePayload(t, recorder).Data.(map[string]interface{})["name"])

	// Another user can't read or touch it
	otherToken, _ := signUpUser(t, router, "mike@example.com")
	recorder = doJSON(t, router, "GET", "/contacts/"+contactID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	recorder = doJSON(t, router, "DELETE", "/contacts/"+contactID, otherToken, nil)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = doJSON(t, router, "DELETE", "/contacts/"+contactID, token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, router, "GET", "/contacts/"+contactID, token, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestNudgeTargetRoutes(t *testing.T) {
	router := newTestApp(t).router()
	token, _ := signUpUser(t, router, "ada@example.com")

	recorder := doJSON(t, router, "POST", "/contacts", token, repos.CreateContactDto{Name: "Harvey"})
	require.Equal(t, http.StatusOK, recorder.Code)
	contactID := decodePayload(t, recorder).Data.(map[string]interface{})["id"].(string)

	recorder = doJSON(t, router, "POST", "/nudge-targets", token, map[string]interface{}{
		"name":        "Law school friends",
		"contact_ids": []string{contactID},
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	targetID := decodePayload(t, recorder).Data.(map[string]interface{})["id"].(string)

	// A bogus recurrence pattern is rejected up front
	recorder = doJSON(t, router, "POST", "/nudge-targets", token, map[string]interface{}{
		"name":               "Bad pattern",
		"recurrence_pattern": map[string]string{"frequency": "hourly", "time": "09:00"},
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = doJSON(t, router, "GET", "/nudge-targets/"+targetID, token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	target := decodePayload(t, recorder).Data.(map[string]interface{})
	assert.Equal(t, false, target["is_group"])

	// Attach a second contact; the target becomes a group
	recorder = doJSON(t, router, "POST", "/contacts", token, repos.CreateContactDto{Name: "Donna"})
	require.Equal(t, http.StatusOK, recorder.Code)
	secondContactID := decodePayload(t, recorder).Data.(map[string]interface{})["id"].(string)

	recorder = doJSON(t, router, "POST", fmt.Sprintf("/nudge-targets/%v/contacts/%v", targetID, secondContactID), token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, router, "GET", "/nudge-targets/"+targetID, token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	target = decodePayload(t, recorder).Data.(map[string]interface{})
	assert.Equal(t, true, target["is_group"])

	recorder = doJSON(t, router, "DELETE", fmt.Sprintf("/nudge-targets/%v/contacts/%v", targetID, secondContactID), token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, router, "DELETE", "/nudge-targets/"+targetID, token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	recorder = doJSON(t, router, "GET", "/nudge-targets/"+targetID, token, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestNudgeRoutes(t *testing.T) {
	router := newTestApp(t).router()
	token, _ := signUpUser(t, router, "ada@example.com")
	otherToken, _ := signUpUser(t, router, "mike@example.com")

	recorder := doJSON(t, router, "POST", "/nudges", token, repos.CreateNudgeDto{Text: "Call your parents"})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	nudge := decodePayload(t, recorder).Data.(map[string]interface{})
	nudgeID := fmt.Sprintf("%v", nudge["id"])

	// Everyone sees the feed & can upvote
	recorder = doJSON(t, router, "GET", "/nudges", otherToken, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, decodePayload(t, recorder).Data, 1)

	recorder = doJSON(t, router, "POST", "/nudges/"+nudgeID+"/upvote", otherToken, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	// Double upvote conflicts
	recorder = doJSON(t, router, "POST", "/nudges/"+nudgeID+"/upvote", otherToken, nil)
	assert.Equal(t, http.StatusConflict, recorder.Code)

	recorder = doJSON(t, router, "GET", "/nudges/"+nudgeID, otherToken, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	detail := decodePayload(t, recorder).Data.(map[string]interface{})
	assert.Equal(t, float64(1), detail["upvotes_count"])
	assert.Equal(t, true, detail["user_has_upvoted"])

	// Only the creator can edit or delete
	recorder = doJSON(t, router, "PUT", "/nudges/"+nudgeID, otherToken, map[string]string{"text": "hijacked"})
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = doJSON(t, router, "PUT", "/nudges/"+nudgeID, token, map[string]string{"text": "Call your parents today"})
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, router, "GET", "/my/nudges", token, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Len(t, decodePayload(t, recorder).Data, 1)
	recorder = doJSON(t, router, "GET", "/my/nudges", otherToken, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, decodePayload(t, recorder).Data)

	recorder = doJSON(t, router, "DELETE", "/nudges/"+nudgeID, token, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	recorder = doJSON(t, router, "GET", "/nudges/"+nudgeID, token, nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestSmsWebhookCompletesSend(t *testing.T) {
	app := newTestApp(t)
	router := app.router()
	token, _ := signUpUser(t, router, "ada@example.com")

	recorder := doJSON(t, router, "POST", "/contacts", token, repos.CreateContactDto{
		Name:  "Harvey",
		Phone: "+15550001111",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	contactID := decodePayload(t, recorder).Data.(map[string]interface{})["id"].(string)

	recorder = doJSON(t, router, "POST", "/nudge-targets", token, map[string]interface{}{
		"name":        "Harvey",
		"contact_ids": []string{contactID},
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	targetID := decodePayload(t, recorder).Data.(map[string]interface{})["id"].(string)

	recorder = doJSON(t, router, "POST", "/nudges", token, map[string]interface{}{
		"text":            "Check in with Harvey",
		"nudge_target_id": targetID,
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	sends, err := app.registry.Nudges.UnsentSends(10)
	require.NoError(t, err)
	require.Len(t, sends, 1)
	require.NoError(t, app.registry.Nudges.MarkSendDelivered(sends[0].ID))

	form := url.Values{}
	form.Set("From", "+15550001111")
	form.Set("Body", "Done!")

	req := httptest.NewRequest("POST", "/sms/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	webhookRecorder := httptest.NewRecorder()
	router.ServeHTTP(webhookRecorder, req)

	require.Equal(t, http.StatusOK, webhookRecorder.Code)
	assert.Contains(t, webhookRecorder.Body.String(), "marked this nudge as done")

	send, err := app.registry.Nudges.GetSend(sends[0].ID)
	require.NoError(t, err)
	assert.NotNil(t, send.CompletedAt)
}
