package handlers

import (
	"net/http"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type messagesResponse struct {
	Messages []messageView `json:"messages"`
}

func TestMessageThread(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCase(t, env.citizen, "Water leak", false)
	citizen := env.login(t, env.citizen)
	admin := env.login(t, env.admin)
	path := "/api/cases/" + id + "/messages"

	body, ct := multipartBody(t, map[string]string{"message": "Any update?"}, "", "", "")
	rec := env.do(t, http.MethodPost, path, body, ct, citizen)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body, ct = multipartBody(t, map[string]string{"message": ""}, "file", "meter.jpg", "jpeg-bytes")
	rec = env.do(t, http.MethodPost, path, body, ct, admin)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var withFile messageView
	decode(t, rec, &withFile)
	assert.Equal(t, "meter.jpg", withFile.FileName)
	assert.NotEmpty(t, withFile.File)

	// Empty submissions are rejected and leave no trace
	body, ct = multipartBody(t, map[string]string{"message": "   "}, "", "", "")
	rec = env.do(t, http.MethodPost, path, body, ct, citizen)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, path, nil, "", citizen)
	assert.Equal(t, http.StatusOK, rec.Code)
	var thread messagesResponse
	decode(t, rec, &thread)
	assert.Len(t, thread.Messages, 2)
	assert.Equal(t, "citizen", thread.Messages[0].User)
	assert.Equal(t, "Any update?", thread.Messages[0].Text)
	assert.Equal(t, "admin", thread.Messages[1].User)
	assert.Regexp(t, regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`), thread.Messages[0].Timestamp)

	// Registration plus one upload entry
	entries := env.history(t, id, "")
	assert.Len(t, entries, 2)
	assert.Equal(t, "A file uploaded: meter.jpg", entries[1].Action)

	// Outsiders can neither read nor write
	outsider := env.login(t, env.other)
	rec = env.do(t, http.MethodGet, path, nil, "", outsider)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	body, ct = multipartBody(t, map[string]string{"message": "hello"}, "", "", "")
	rec = env.do(t, http.MethodPost, path, body, ct, outsider)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPostMessageURLEncoded(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCase(t, env.citizen, "Water leak", false)

	rec := env.do(t, http.MethodPost, "/api/cases/"+id+"/messages",
		strings.NewReader("message=plain+form"), "application/x-www-form-urlencoded", env.login(t, env.citizen))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var msg messageView
	decode(t, rec, &msg)
	assert.Equal(t, "plain form", msg.Text)
	assert.Empty(t, msg.File)
}

func TestAnonymousReporterHiddenInThread(t *testing.T) {
	env := newTestEnv(t)
	id := env.createCase(t, env.citizen, "Bribery at the depot", true)
	admin := env.login(t, env.admin)
	officer := env.login(t, env.handler)
	citizen := env.login(t, env.citizen)
	path := "/api/cases/" + id + "/messages"

	rec := env.doJSON(t, http.MethodPost, "/api/cases/"+id+"/assign", map[string]string{"handler_id": env.handler.ID}, admin)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body, ct := multipartBody(t, map[string]string{"message": "I saw it twice"}, "", "", "")
	rec = env.do(t, http.MethodPost, path, body, ct, citizen)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var posted messageView
	decode(t, rec, &posted)
	assert.Equal(t, "Anonymous", posted.User)

	body, ct = multipartBody(t, map[string]string{"message": "Noted"}, "", "", "")
	rec = env.do(t, http.MethodPost, path, body, ct, officer)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var thread messagesResponse
	rec = env.do(t, http.MethodGet, path, nil, "", officer)
	assert.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &thread)
	assert.Len(t, thread.Messages, 2)
	assert.Equal(t, "Anonymous", thread.Messages[0].User)
	assert.Equal(t, "officer", thread.Messages[1].User)
	assert.NotContains(t, rec.Body.String(), "citizen")

	rec = env.do(t, http.MethodGet, path, nil, "", admin)
	decode(t, rec, &thread)
	assert.Equal(t, "citizen", thread.Messages[0].User)
}
