package http

import (
	"net/http"
	"strconv"

	"github.com/nadzzz/securecall/internal/message"
	"github.com/nadzzz/securecall/internal/transport"
)

type handlers struct {
	t       *Transport
	actions transport.Actions
}

// alterVoice handles POST /api/voice/alter.
//
// @Summary     Transform a voice
// @Description Transforms a recording (a data URI in text) or plain text into the selected persona's voice.
// @Tags        voice
// @Accept      json
// @Produce     json
// @Param       request  body      message.AlterVoiceRequest  true  "Persona and input"
// @Success     200  {object}  message.AlterVoiceResult
// @Failure     400  {object}  message.AlterVoiceResult  "Validation failure"
// @Failure     502  {object}  message.AlterVoiceResult  "Voice backend failure"
// @Router      /api/voice/alter [post]
func (h *handlers) alterVoice(w http.ResponseWriter, r *http.Request) {
	var req message.AlterVoiceRequest
	if !h.t.decodeJSON(w, r, &req) {
		return
	}
	result := h.actions.AlterVoice(r.Context(), req)
	writeResult(w, result.Kind, result)
}

// personas handles GET /api/personas.
//
// @Summary     List personas
// @Description Lists the preset personas with their display labels, in picker order.
// @Tags        voice
// @Produce     json
// @Success     200  {object}  message.PersonasResult
// @Router      /api/personas [get]
func (h *handlers) personas(w http.ResponseWriter, r *http.Request) {
	writeResult(w, "", h.actions.Personas())
}

// saveProfile handles POST /api/profiles.
//
// @Summary     Save a voice profile
// @Description Stores generated audio as a custom voice profile named after the persona.
// @Tags        profiles
// @Accept      json
// @Produce     json
// @Param       request  body      message.SaveProfileRequest  true  "Owner, persona and audio data URI"
// @Success     200  {object}  message.SaveProfileResult
// @Failure     400  {object}  message.SaveProfileResult  "Invalid input"
// @Failure     502  {object}  message.SaveProfileResult  "Storage failure"
// @Router      /api/profiles [post]
func (h *handlers) saveProfile(w http.ResponseWriter, r *http.Request) {
	var req message.SaveProfileRequest
	if !h.t.decodeJSON(w, r, &req) {
		return
	}
	result := h.actions.SaveProfile(r.Context(), req)
	writeResult(w, result.Kind, result)
}

// listProfiles handles GET /api/users/{userID}/profiles.
//
// @Summary     List voice profiles
// @Tags        profiles
// @Produce     json
// @Param       userID  path  string  true  "User ID"
// @Success     200  {object}  message.ListProfilesResult
// @Router      /api/users/{userID}/profiles [get]
func (h *handlers) listProfiles(w http.ResponseWriter, r *http.Request) {
	result := h.actions.ListProfiles(r.Context(), r.PathValue("userID"))
	writeResult(w, result.Kind, result)
}

// getProfile handles GET /api/users/{userID}/profiles/{profileID}.
//
// @Summary     Get a voice profile
// @Tags        profiles
// @Produce     json
// @Param       userID     path  string  true  "User ID"
// @Param       profileID  path  string  true  "Profile ID"
// @Success     200  {object}  message.ProfileResult
// @Failure     404  {object}  message.ProfileResult
// @Router      /api/users/{userID}/profiles/{profileID} [get]
func (h *handlers) getProfile(w http.ResponseWriter, r *http.Request) {
	result := h.actions.GetProfile(r.Context(), r.PathValue("userID"), r.PathValue("profileID"))
	writeResult(w, result.Kind, result)
}

// deleteProfile handles DELETE /api/users/{userID}/profiles/{profileID}.
//
// @Summary     Delete a voice profile
// @Tags        profiles
// @Produce     json
// @Param       userID     path  string  true  "User ID"
// @Param       profileID  path  string  true  "Profile ID"
// @Success     200  {object}  message.DeleteProfileResult
// @Failure     404  {object}  message.DeleteProfileResult
// @Router      /api/users/{userID}/profiles/{profileID} [delete]
func (h *handlers) deleteProfile(w http.ResponseWriter, r *http.Request) {
	result := h.actions.DeleteProfile(r.Context(), r.PathValue("userID"), r.PathValue("profileID"))
	writeResult(w, result.Kind, result)
}

// profileAudio handles GET /api/users/{userID}/profiles/{profileID}/audio.
// Twilio fetches this URL when a server-placed call is answered.
//
// @Summary     Download profile audio
// @Tags        profiles
// @Produce     audio/wav
// @Param       userID     path  string  true  "User ID"
// @Param       profileID  path  string  true  "Profile ID"
// @Success     200  {file}    binary
// @Failure     404  {object}  message.ProfileAudioResult
// @Router      /api/users/{userID}/profiles/{profileID}/audio [get]
func (h *handlers) profileAudio(w http.ResponseWriter, r *http.Request) {
	result := h.actions.ProfileAudio(r.Context(), r.PathValue("userID"), r.PathValue("profileID"))
	if result.Failed() {
		writeResult(w, result.Kind, result)
		return
	}
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Audio)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	_, _ = w.Write(result.Audio)
}

// issueToken handles POST /api/telephony/token.
//
// @Summary     Issue a Voice SDK token
// @Description Signs a Twilio Access Token with a Voice grant for the browser SDK.
// @Tags        telephony
// @Accept      json
// @Produce     json
// @Param       request  body      message.TokenRequest  true  "Client identity"
// @Success     200  {object}  message.TokenResult
// @Failure     503  {object}  message.TokenResult  "Telephony not configured"
// @Router      /api/telephony/token [post]
func (h *handlers) issueToken(w http.ResponseWriter, r *http.Request) {
	var req message.TokenRequest
	if !h.t.decodeJSON(w, r, &req) {
		return
	}
	result := h.actions.IssueToken(r.Context(), req)
	writeResult(w, result.Kind, result)
}

// placeCall handles POST /api/calls.
//
// @Summary     Place a call
// @Description Dials a number and plays the selected voice profile when answered.
// @Tags        telephony
// @Accept      json
// @Produce     json
// @Param       request  body      message.CallRequest  true  "Caller, number and profile"
// @Success     200  {object}  message.CallResult
// @Failure     400  {object}  message.CallResult  "Invalid number or profile"
// @Failure     409  {object}  message.CallResult  "A call is already active"
// @Router      /api/calls [post]
func (h *handlers) placeCall(w http.ResponseWriter, r *http.Request) {
	var req message.CallRequest
	if !h.t.decodeJSON(w, r, &req) {
		return
	}
	result := h.actions.PlaceCall(r.Context(), req)
	writeResult(w, result.Kind, result)
}

// hangupCall handles DELETE /api/calls/{callSID}?userId=.
//
// @Summary     Hang up a call
// @Tags        telephony
// @Produce     json
// @Param       callSID  path   string  true  "Call SID"
// @Param       userId   query  string  true  "Owner of the call"
// @Success     200  {object}  message.CallResult
// @Failure     404  {object}  message.CallResult
// @Router      /api/calls/{callSID} [delete]
func (h *handlers) hangupCall(w http.ResponseWriter, r *http.Request) {
	result := h.actions.HangupCall(r.Context(), message.HangupRequest{
		UserID:  r.URL.Query().Get("userId"),
		CallSID: r.PathValue("callSID"),
	})
	writeResult(w, result.Kind, result)
}
