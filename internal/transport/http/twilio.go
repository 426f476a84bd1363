package http

import (
	"log/slog"
	"net/http"

	"github.com/nadzzz/securecall/internal/message"
	"github.com/nadzzz/securecall/internal/telephony"
)

// requireTwilioSignature rejects webhook requests whose signature does not
// match the public URL and form parameters. It is a no-op without an auth token.
func (t *Transport) requireTwilioSignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		if t.opts.WebhookAuthToken != "" {
			fullURL := t.opts.PublicURL + r.URL.RequestURI()
			if !telephony.ValidSignature(t.opts.WebhookAuthToken, fullURL, r.PostForm, r.Header.Get(telephony.SignatureHeader)) {
				slog.Warn("rejected twilio webhook with bad signature", "path", r.URL.Path, "remote", r.RemoteAddr)
				http.Error(w, "invalid signature", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// voiceWebhook handles POST /twilio/voice.
//
// @Summary     Twilio voice webhook
// @Description Returns TwiML that dials the number requested by the browser SDK.
// @Tags        twilio
// @Accept      x-www-form-urlencoded
// @Produce     xml
// @Param       CallSid  formData  string  true   "Call SID"
// @Param       From     formData  string  false  "Caller, client:<identity> for SDK calls"
// @Param       To       formData  string  true   "Dialed number"
// @Success     200  {string}  string  "TwiML"
// @Failure     403  {string}  string  "Invalid signature"
// @Router      /twilio/voice [post]
func (h *handlers) voiceWebhook(w http.ResponseWriter, r *http.Request) {
	twiml := h.actions.VoiceTwiML(r.Context(), message.VoiceWebhook{
		CallSID: r.PostForm.Get("CallSid"),
		From:    r.PostForm.Get("From"),
		To:      r.PostForm.Get("To"),
	})
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	_, _ = w.Write([]byte(twiml))
}

// statusWebhook handles POST /twilio/status.
//
// @Summary     Twilio status callback
// @Tags        twilio
// @Accept      x-www-form-urlencoded
// @Param       CallSid       formData  string  true   "Call SID"
// @Param       CallStatus    formData  string  true   "Call status"
// @Param       CallDuration  formData  string  false  "Duration in seconds"
// @Param       ParentCallSid formData  string  false  "SDK call SID, set for dialed legs"
// @Success     204
// @Failure     403  {string}  string  "Invalid signature"
// @Router      /twilio/status [post]
func (h *handlers) statusWebhook(w http.ResponseWriter, r *http.Request) {
	h.actions.CallStatusChanged(r.Context(), message.CallStatusEvent{
		CallSID:       r.PostForm.Get("CallSid"),
		ParentCallSID: r.PostForm.Get("ParentCallSid"),
		CallStatus:    r.PostForm.Get("CallStatus"),
		Duration:      r.PostForm.Get("CallDuration"),
	})
	w.WriteHeader(http.StatusNoContent)
}
