// Package transport defines the interface for pluggable request transports.
//
// Each transport (gRPC, HTTP/WebSocket) implements this interface and serves
// the actions of the dispatcher. The dispatcher doesn't care how requests
// arrive; it only works with the Actions contract.
package transport

import (
	"context"
	"net/http"

	"google.golang.org/grpc/codes"

	"github.com/nadzzz/securecall/internal/message"
	"github.com/nadzzz/securecall/internal/session"
)

// Actions is the set of server actions exposed to clients.
type Actions interface {
	AlterVoice(ctx context.Context, req message.AlterVoiceRequest) *message.AlterVoiceResult
	Personas() *message.PersonasResult
	SaveProfile(ctx context.Context, req message.SaveProfileRequest) *message.SaveProfileResult
	ListProfiles(ctx context.Context, userID string) *message.ListProfilesResult
	GetProfile(ctx context.Context, userID, profileID string) *message.ProfileResult
	DeleteProfile(ctx context.Context, userID, profileID string) *message.DeleteProfileResult
	ProfileAudio(ctx context.Context, userID, profileID string) *message.ProfileAudioResult

	IssueToken(ctx context.Context, req message.TokenRequest) *message.TokenResult
	PlaceCall(ctx context.Context, req message.CallRequest) *message.CallResult
	HangupCall(ctx context.Context, req message.HangupRequest) *message.CallResult
	VoiceTwiML(ctx context.Context, hook message.VoiceWebhook) string
	CallStatusChanged(ctx context.Context, evt message.CallStatusEvent)

	Session(userID string) *message.SessionResult
	SelectPersona(userID, gender string) *message.SessionResult
	SetProtection(userID string, enabled bool) *message.SessionResult
	StartRecording(userID string) *message.SessionResult
	AbortRecording(userID, reason string) *message.SessionResult
	StopRecording(ctx context.Context, userID, recording string) *message.SessionResult
	PlaybackEnded(userID string) *message.SessionResult
	SaveSession(ctx context.Context, userID string) *message.SessionResult
	Subscribe(userID string) (<-chan session.Event, func(), error)
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting requests and serves them with actions.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, actions Actions) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}

// HTTPStatus maps a failure kind to an HTTP status code.
func HTTPStatus(kind message.ErrorKind) int {
	switch kind {
	case "":
		return http.StatusOK
	case message.KindInvalid:
		return http.StatusBadRequest
	case message.KindNotFound:
		return http.StatusNotFound
	case message.KindConflict:
		return http.StatusConflict
	case message.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// GRPCCode maps a failure kind to a gRPC status code.
func GRPCCode(kind message.ErrorKind) codes.Code {
	switch kind {
	case "":
		return codes.OK
	case message.KindInvalid:
		return codes.InvalidArgument
	case message.KindNotFound:
		return codes.NotFound
	case message.KindConflict:
		return codes.FailedPrecondition
	case message.KindUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
