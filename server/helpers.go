package server

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator"
	"github.com/gorilla/mux"
	"github.com/nudgelabs/nudged/server/apperrors"
	"github.com/nudgelabs/nudged/server/auth"
)

type ResponsePayload struct {
	Errors  []string    `json:"errors,omitempty"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type DecodedJWT struct {
	Claims   *auth.NudgedTokenClaims
	ErrorMsg string
}

type TwilioSmsResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

var phoneNumberRegex = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// ---------------------------------------------------------------------------------//
// Handler Helper functions
// --------------------------------------------------------------------------------//

func writeResponse(rw http.ResponseWriter, payLoad ResponsePayload, statusCode int) {
	if statusCode >= http.StatusInternalServerError {
		logg.Error(payLoad.Errors)
	} else if statusCode >= http.StatusBadRequest {
		logg.Info(payLoad.Errors)
	}

	rw.WriteHeader(statusCode)
	json.NewEncoder(rw).Encode(payLoad)
}

// writeError maps a normalized error onto the HTTP response. Anything
// that isn't an *apperrors.Error comes out as a 500.
func writeError(rw http.ResponseWriter, err error) {
	writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, apperrors.StatusCode(err))
}

func writeData(rw http.ResponseWriter, data interface{}) {
	json.NewEncoder(rw).Encode(ResponsePayload{Success: true, Data: data})
}

func decodeBody(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apperrors.Validation("invalid request body")
	}
	return nil
}

func (app *app) validateStruct(data interface{}) error {
	if errs := app.validate.Struct(data); errs != nil {
		return apperrors.Validation(strings.Join(strings.Split(errs.Error(), "\n"), "; "))
	}
	return nil
}

func nudgeIDVar(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, apperrors.Validation("invalid nudge id")
	}
	return uint(id), nil
}

func writeErrMsgForSmsWebhook(rw http.ResponseWriter, err error) {
	logg.Error(err)

	errMsg := "Sorry an application error has occured.\nPlease try again later"
	msgBytes, marshalErr := xml.Marshal(&TwilioSmsResponse{Message: errMsg})
	if marshalErr != nil {
		logg.Errorf("writeErrMsgForSmsWebhook: %v", marshalErr)
	}

	writeSmsWebHookResponse(rw, msgBytes, http.StatusOK)
}

func writeSmsWebHookResponse(rw http.ResponseWriter, body []byte, status int) {
	rw.Header().Set("Content-Type", "application/xml")
	rw.WriteHeader(status)
	rw.Write(body)
}

func RegisterValidators(validate *validator.Validate) error {
	err := validate.RegisterValidation("phone_number", func(fl validator.FieldLevel) bool {
		return isValidPhoneNumber(fl.Field().String())
	})
	if err != nil {
		return err
	}

	// Config values sourced from yaml/env can come through as either a
	// real bool or the strings "true"/"false".
	return validate.RegisterValidation("bool", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		if field.Kind() == reflect.Bool {
			return true
		}

		value := strings.ToLower(strings.TrimSpace(field.String()))
		return value == "" || value == "true" || value == "false"
	})
}

func isValidPhoneNumber(value string) bool {
	return phoneNumberRegex.MatchString(value)
}

// ---------------------------------------------------------------------------------//
// Middleware Helper functions
// --------------------------------------------------------------------------------//

func (app *app) decodeAndVerifyAuthHeader(authHeaderValue string) DecodedJWT {
	authHeaderList := strings.Split(authHeaderValue, "Bearer ")
	if len(authHeaderList) < 2 {
		return DecodedJWT{ErrorMsg: "no token provided"}
	}

	tokenClaims, err := auth.DecodeJWT(authHeaderList[1], app.authKeyPair)
	if err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	// validate that the account still exists
	if _, err = app.registry.Profiles.Get(tokenClaims.Subject); err != nil {
		return DecodedJWT{ErrorMsg: "invalid token provided"}
	}

	return DecodedJWT{Claims: tokenClaims}
}

// currentUserID returns the authenticated user behind the request, ""
// on unauthenticated routes.
func currentUserID(r *http.Request) string {
	decodedJWT, ok := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT)
	if !ok || decodedJWT.Claims == nil {
		return ""
	}
	return decodedJWT.Claims.Subject
}

func fatalOnError(err error) {
	if err != nil {
		logg.Fatal(err)
	}
}
