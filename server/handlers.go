package server

import (
	"encoding/json"
	"encoding/xml"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/nudgelabs/nudged/server/apperrors"
	"github.com/nudgelabs/nudged/server/auth"
	"github.com/nudgelabs/nudged/server/auth/key"
	"github.com/nudgelabs/nudged/server/dispatch"
	"github.com/nudgelabs/nudged/server/models"
	"github.com/nudgelabs/nudged/server/repos"
	"github.com/nudgelabs/nudged/version"
)

func (app *app) healthCheck(rw http.ResponseWriter, r *http.Request) {
	writeData(rw, map[string]string{"status": "ok", "version": version.Version})
}

func (app *app) jwks(rw http.ResponseWriter, r *http.Request) {
	keyPairJWK, err := app.authKeyPair.JWK()
	if err != nil {
		writeError(rw, apperrors.Unknown(err))
		return
	}

	json.NewEncoder(rw).Encode(key.ExportJWKAsJWKS(keyPairJWK))
}

// ---------------------------------------------------------------------------------//
// Auth
// --------------------------------------------------------------------------------//

func (app *app) signUp(rw http.ResponseWriter, r *http.Request) {
	data := auth.SignUpDto{}
	if err := decodeBody(r, &data); err != nil {
		writeError(rw, err)
		return
	}

	session, err := app.authService.SignUp(data)
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, session)
}

func (app *app) logIn(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]string)
	if err := decodeBody(r, &data); err != nil {
		writeError(rw, err)
		return
	}

	session, err := app.authService.SignIn(data["email"], data["password"])
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, session)
}

func (app *app) logOut(rw http.ResponseWriter, r *http.Request) {
	app.authService.SignOut()
	writeData(rw, nil)
}

func (app *app) currentSession(rw http.ResponseWriter, r *http.Request) {
	decodedJWT := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)

	writeData(rw, map[string]interface{}{
		"user_id": decodedJWT.Claims.Subject,
		"email":   decodedJWT.Claims.Email,
	})
}

// ---------------------------------------------------------------------------------//
// Profile
// --------------------------------------------------------------------------------//

func (app *app) findProfile(rw http.ResponseWriter, r *http.Request) {
	profile, err := app.queries.Profiles.Get(currentUserID(r))
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, profile)
}

func (app *app) updateProfile(rw http.ResponseWriter, r *http.Request) {
	data := make(map[string]interface{})
	if err := decodeBody(r, &data); err != nil {
		writeError(rw, err)
		return
	}

	profile, err := app.queries.Profiles.Update(currentUserID(r), data)
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, profile)
}

// ---------------------------------------------------------------------------------//
// Contacts
// --------------------------------------------------------------------------------//

func (app *app) listContacts(rw http.ResponseWriter, r *http.Request) {
	contacts, err := app.queries.Contacts.List(currentUserID(r))
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, contacts)
}

func (app *app) createContact(rw http.ResponseWriter, r *http.Request) {
	dto := repos.CreateContactDto{}
	if err := decodeBody(r, &dto); err != nil {
		writeError(rw, err)
		return
	}
	if err := app.validateStruct(dto); err != nil {
		writeError(rw, err)
		return
	}

	contact, err := app.queries.Contacts.Create(currentUserID(r), dto)
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, contact)
}

func (app *app) findContact(rw http.ResponseWriter, r *http.Request) {
	contact, err := app.ownedContact(r)
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, contact)
}

func (app *app) updateContact(rw http.ResponseWriter, r *http.Request) {
	if _, err := app.ownedContact(r); err != nil {
		writeError(rw, err)
		return
	}

	data := make(map[string]interface{})
	if err := decodeBody(r, &data); err != nil {
		writeError(rw, err)
		return
	}

	contact, err := app.queries.Contacts.Update(mux.Vars(r)["id"], data)
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, contact)
}

func (app *app) deleteContact(rw http.ResponseWriter, r *http.Request) {
	if _, err := app.ownedContact(r); err != nil {
		writeError(rw, err)
		return
	}

	if err := app.queries.Contacts.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, nil)
}

// ownedContact loads the contact in the route & verifies it belongs to
// the authenticated user.
func (app *app) ownedContact(r *http.Request) (*models.Contact, error) {
	contact, err := app.queries.Contacts.Get(mux.Vars(r)["id"])
	if err != nil {
		return nil, err
	}
	if contact.OwnerID != currentUserID(r) {
		return nil, apperrors.Forbidden("contact belongs to another user")
	}

	return contact, nil
}

// ---------------------------------------------------------------------------------//
// Nudge targets
// --------------------------------------------------------------------------------//

func (app *app) listNudgeTargets(rw http.ResponseWriter, r *http.Request) {
	targets, err := app.queries.Targets.List(currentUserID(r))
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, targets)
}

func (app *app) createNudgeTarget(rw http.ResponseWriter, r *http.Request) {
	dto := repos.CreateTargetDto{}
	if err := decodeBody(r, &dto); err != nil {
		writeError(rw, err)
		return
	}
	if err := app.validateStruct(dto); err != nil {
		writeError(rw, err)
		return
	}
	if len(dto.RecurrencePattern) > 0 {
		if _, err := dispatch.ParseRecurrencePattern([]byte(dto.RecurrencePattern)); err != nil {
			writeError(rw, apperrors.Validation(err.Error()))
			return
		}
	}

	target, err := app.queries.Targets.Create(currentUserID(r), dto)
	if err != nil {
		writeError(rw, err)
		return
	}

	if len(target.RecurrencePattern) > 0 {
		if err := app.dispatcher.ScheduleTarget(target.ID, target.RecurrencePattern); err != nil {
			logg.Errorf("unable to schedule target %v: %v", target.ID, err)
		}
	}

	writeData(rw, target)
}

func (app *app) findNudgeTarget(rw http.ResponseWriter, r *http.Request) {
	target, err := app.ownedTarget(r)
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, target)
}

func (app *app) updateNudgeTarget(rw http.ResponseWriter, r *http.Request) {
	if _, err := app.ownedTarget(r); err != nil {
		writeError(rw, err)
		return
	}

	data := make(map[string]interface{})
	if err := decodeBody(r, &data); err != nil {
		writeError(rw, err)
		return
	}

	target, err := app.queries.Targets.Update(mux.Vars(r)["id"], data)
	if err != nil {
		writeError(rw, err)
		return
	}

	// Keep the recurring schedule in step with the stored pattern.
	if _, changed := data["recurrence_pattern"]; changed {
		app.dispatcher.UnscheduleTarget(target.ID)
		if len(target.RecurrencePattern) > 0 {
			if err := app.dispatcher.ScheduleTarget(target.ID, target.RecurrencePattern); err != nil {
				logg.Errorf("unable to reschedule target %v: %v", target.ID, err)
			}
		}
	}

	writeData(rw, target)
}

func (app *app) deleteNudgeTarget(rw http.ResponseWriter, r *http.Request) {
	if _, err := app.ownedTarget(r); err != nil {
		writeError(rw, err)
		return
	}

	targetID := mux.Vars(r)["id"]
	if err := app.queries.Targets.Delete(targetID); err != nil {
		writeError(rw, err)
		return
	}
	app.dispatcher.UnscheduleTarget(targetID)

	if app.imageStore != nil {
		if err := app.imageStore.DeleteImage(r.Context(), targetID); err != nil {
			logg.Errorf("unable to delete image for target %v: %v", targetID, err)
		}
	}

	writeData(rw, nil)
}

func (app *app) attachContact(rw http.ResponseWriter, r *http.Request) {
	if _, err := app.ownedTarget(r); err != nil {
		writeError(rw, err)
		return
	}

	vars := mux.Vars(r)
	contact, err := app.queries.Contacts.Get(vars["contactID"])
	if err != nil {
		writeError(rw, err)
		return
	}
	if contact.OwnerID != currentUserID(r) {
		writeError(rw, apperrors.Forbidden("contact belongs to another user"))
		return
	}

	if err := app.queries.Targets.AttachContact(vars["id"], vars["contactID"]); err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, nil)
}

func (app *app) detachContact(rw http.ResponseWriter, r *http.Request) {
	if _, err := app.ownedTarget(r); err != nil {
		writeError(rw, err)
		return
	}

	vars := mux.Vars(r)
	if err := app.queries.Targets.DetachContact(vars["id"], vars["contactID"]); err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, nil)
}

func (app *app) uploadNudgeTargetImage(rw http.ResponseWriter, r *http.Request) {
	if app.imageStore == nil {
		writeError(rw, apperrors.Validation("image uploads are not enabled on this server"))
		return
	}

	target, err := app.ownedTarget(r)
	if err != nil {
		writeError(rw, err)
		return
	}
	defer r.Body.Close()

	imageURI, err := app.imageStore.UploadImage(r.Context(), target.ID, r.Header.Get("Content-Type"), r.Body)
	if err != nil {
		writeError(rw, apperrors.Validation(err.Error()))
		return
	}

	updated, err := app.queries.Targets.Update(target.ID, map[string]interface{}{"image_uri": imageURI})
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, updated)
}

func (app *app) ownedTarget(r *http.Request) (*repos.TargetWithContacts, error) {
	target, err := app.queries.Targets.Get(mux.Vars(r)["id"])
	if err != nil {
		return nil, err
	}
	if target.OwnerID != currentUserID(r) {
		return nil, apperrors.Forbidden("nudge target belongs to another user")
	}

	return target, nil
}

// ---------------------------------------------------------------------------------//
// Nudges
// --------------------------------------------------------------------------------//

func (app *app) listNudges(rw http.ResponseWriter, r *http.Request) {
	nudges, err := app.queries.Nudges.List(currentUserID(r))
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, nudges)
}

func (app *app) listMyNudges(rw http.ResponseWriter, r *http.Request) {
	nudges, err := app.queries.Nudges.ListByCreator(currentUserID(r))
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, nudges)
}

func (app *app) createNudge(rw http.ResponseWriter, r *http.Request) {
	dto := repos.CreateNudgeDto{}
	if err := decodeBody(r, &dto); err != nil {
		writeError(rw, err)
		return
	}
	if err := app.validateStruct(dto); err != nil {
		writeError(rw, err)
		return
	}

	nudge, err := app.queries.Nudges.Create(currentUserID(r), dto)
	if err != nil {
		writeError(rw, err)
		return
	}

	// Fan-out sends, if any, get picked up for delivery right away.
	if dto.NudgeTargetID != nil {
		if err := app.dispatcher.EnqueueOpenSends(); err != nil {
			logg.Errorf("unable to enqueue sends for nudge %v: %v", nudge.ID, err)
		}
	}

	writeData(rw, nudge)
}

func (app *app) findNudge(rw http.ResponseWriter, r *http.Request) {
	id, err := nudgeIDVar(r)
	if err != nil {
		writeError(rw, err)
		return
	}

	nudge, err := app.queries.Nudges.Get(id, currentUserID(r))
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, nudge)
}

func (app *app) updateNudge(rw http.ResponseWriter, r *http.Request) {
	nudge, err := app.ownNudge(r)
	if err != nil {
		writeError(rw, err)
		return
	}

	data := make(map[string]interface{})
	if err := decodeBody(r, &data); err != nil {
		writeError(rw, err)
		return
	}

	updated, err := app.queries.Nudges.Update(nudge.ID, data)
	if err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, updated)
}

func (app *app) deleteNudge(rw http.ResponseWriter, r *http.Request) {
	nudge, err := app.ownNudge(r)
	if err != nil {
		writeError(rw, err)
		return
	}

	if err := app.queries.Nudges.Delete(nudge.ID); err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, nil)
}

func (app *app) upvoteNudge(rw http.ResponseWriter, r *http.Request) {
	id, err := nudgeIDVar(r)
	if err != nil {
		writeError(rw, err)
		return
	}

	if err := app.queries.Nudges.Upvote(id, currentUserID(r)); err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, nil)
}

func (app *app) removeNudgeUpvote(rw http.ResponseWriter, r *http.Request) {
	id, err := nudgeIDVar(r)
	if err != nil {
		writeError(rw, err)
		return
	}

	if err := app.queries.Nudges.RemoveUpvote(id, currentUserID(r)); err != nil {
		writeError(rw, err)
		return
	}

	writeData(rw, nil)
}

// ownNudge loads the nudge in the route & verifies the authenticated
// user created it. Upvotes are open to everyone, edits are not.
func (app *app) ownNudge(r *http.Request) (*repos.NudgeWithDetails, error) {
	id, err := nudgeIDVar(r)
	if err != nil {
		return nil, err
	}

	nudge, err := app.queries.Nudges.Get(id, currentUserID(r))
	if err != nil {
		return nil, err
	}
	if nudge.CreatedBy != currentUserID(r) {
		return nil, apperrors.Forbidden("nudge was created by another user")
	}

	return nudge, nil
}

// ---------------------------------------------------------------------------------//
// Jobs & webhooks
// --------------------------------------------------------------------------------//

func (app *app) jobsStats(rw http.ResponseWriter, r *http.Request) {
	stats, err := models.CurrentJobsStats(app.db)
	if err != nil {
		writeError(rw, apperrors.FromDB(err))
		return
	}

	writeData(rw, stats)
}

// smsWebhook handles inbound twilio messages. A reply from a contact
// marks their most recent delivered nudge send as completed.
func (app *app) smsWebhook(rw http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeErrMsgForSmsWebhook(rw, err)
		return
	}

	if app.twilioClient.Enabled() &&
		!app.twilioClient.ValidateRequest(r.URL.Path, r.PostForm, r.Header.Get("X-Twilio-Signature")) {
		writeResponse(rw, ResponsePayload{Errors: []string{"invalid signature"}}, http.StatusUnauthorized)
		return
	}

	from := r.PostForm.Get("From")
	contacts, err := app.registry.Contacts.ListByPhone(from)
	if err != nil {
		writeErrMsgForSmsWebhook(rw, err)
		return
	}

	completed := false
	for _, contact := range contacts {
		if err := app.registry.Nudges.CompleteSendForContact(contact.ID); err == nil {
			completed = true
			break
		}
	}

	message := "Thanks for the reply!"
	if completed {
		message = "Got it, we've marked this nudge as done. Thanks for staying in touch!"
	}

	msgBytes, err := xml.Marshal(&TwilioSmsResponse{Message: message})
	if err != nil {
		writeErrMsgForSmsWebhook(rw, err)
		return
	}

	writeSmsWebHookResponse(rw, msgBytes, http.StatusOK)
}
