// Package docs holds the OpenAPI document served under /swagger/.
//
// The document follows the swag annotations on the HTTP handlers and is kept
// in sync with them by hand; `go generate ./cmd/securecall` rewrites it with
// swag init.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/personas": {
            "get": {
                "description": "Lists the preset personas with their display labels, in picker order.",
                "produces": ["application/json"],
                "tags": ["voice"],
                "summary": "List personas",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.PersonasResult"}}
                }
            }
        },
        "/api/voice/alter": {
            "post": {
                "description": "Transforms a recording (a data URI in text) or plain text into the selected persona's voice.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["voice"],
                "summary": "Transform a voice",
                "parameters": [
                    {"description": "Persona and input", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/message.AlterVoiceRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.AlterVoiceResult"}},
                    "400": {"description": "Validation failure", "schema": {"$ref": "#/definitions/message.AlterVoiceResult"}},
                    "502": {"description": "Voice backend failure", "schema": {"$ref": "#/definitions/message.AlterVoiceResult"}}
                }
            }
        },
        "/api/profiles": {
            "post": {
                "description": "Stores generated audio as a custom voice profile named after the persona.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["profiles"],
                "summary": "Save a voice profile",
                "parameters": [
                    {"description": "Owner, persona and audio data URI", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/message.SaveProfileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.SaveProfileResult"}},
                    "400": {"description": "Invalid input", "schema": {"$ref": "#/definitions/message.SaveProfileResult"}},
                    "502": {"description": "Storage failure", "schema": {"$ref": "#/definitions/message.SaveProfileResult"}}
                }
            }
        },
        "/api/users/{userID}/profiles": {
            "get": {
                "produces": ["application/json"],
                "tags": ["profiles"],
                "summary": "List voice profiles",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.ListProfilesResult"}}
                }
            }
        },
        "/api/users/{userID}/profiles/{profileID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["profiles"],
                "summary": "Get a voice profile",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"type": "string", "description": "Profile ID", "name": "profileID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.ProfileResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/message.ProfileResult"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["profiles"],
                "summary": "Delete a voice profile",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"type": "string", "description": "Profile ID", "name": "profileID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.DeleteProfileResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/message.DeleteProfileResult"}}
                }
            }
        },
        "/api/users/{userID}/profiles/{profileID}/audio": {
            "get": {
                "produces": ["audio/wav"],
                "tags": ["profiles"],
                "summary": "Download profile audio",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"type": "string", "description": "Profile ID", "name": "profileID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/message.ProfileAudioResult"}}
                }
            }
        },
        "/api/telephony/token": {
            "post": {
                "description": "Signs a Twilio Access Token with a Voice grant for the browser SDK.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["telephony"],
                "summary": "Issue a Voice SDK token",
                "parameters": [
                    {"description": "Client identity", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/message.TokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.TokenResult"}},
                    "503": {"description": "Telephony not configured", "schema": {"$ref": "#/definitions/message.TokenResult"}}
                }
            }
        },
        "/api/calls": {
            "post": {
                "description": "Dials a number and plays the selected voice profile when answered.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["telephony"],
                "summary": "Place a call",
                "parameters": [
                    {"description": "Caller, number and profile", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/message.CallRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.CallResult"}},
                    "400": {"description": "Invalid number or profile", "schema": {"$ref": "#/definitions/message.CallResult"}},
                    "409": {"description": "A call is already active", "schema": {"$ref": "#/definitions/message.CallResult"}}
                }
            }
        },
        "/api/calls/{callSID}": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["telephony"],
                "summary": "Hang up a call",
                "parameters": [
                    {"type": "string", "description": "Call SID", "name": "callSID", "in": "path", "required": true},
                    {"type": "string", "description": "Owner of the call", "name": "userId", "in": "query", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.CallResult"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/message.CallResult"}}
                }
            }
        },
        "/twilio/voice": {
            "post": {
                "description": "Returns TwiML that dials the number requested by the browser SDK.",
                "consumes": ["application/x-www-form-urlencoded"],
                "produces": ["text/xml"],
                "tags": ["twilio"],
                "summary": "Twilio voice webhook",
                "parameters": [
                    {"type": "string", "description": "Call SID", "name": "CallSid", "in": "formData", "required": true},
                    {"type": "string", "description": "Caller, client:<identity> for SDK calls", "name": "From", "in": "formData"},
                    {"type": "string", "description": "Dialed number", "name": "To", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "TwiML", "schema": {"type": "string"}},
                    "403": {"description": "Invalid signature", "schema": {"type": "string"}}
                }
            }
        },
        "/twilio/status": {
            "post": {
                "consumes": ["application/x-www-form-urlencoded"],
                "tags": ["twilio"],
                "summary": "Twilio status callback",
                "parameters": [
                    {"type": "string", "description": "Call SID", "name": "CallSid", "in": "formData", "required": true},
                    {"type": "string", "description": "Call status", "name": "CallStatus", "in": "formData", "required": true},
                    {"type": "string", "description": "Duration in seconds", "name": "CallDuration", "in": "formData"},
                    {"type": "string", "description": "SDK call SID, set for dialed legs", "name": "ParentCallSid", "in": "formData"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Invalid signature", "schema": {"type": "string"}}
                }
            }
        },
        "/api/sessions/{userID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Get the call screen session",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.SessionResult"}}
                }
            }
        },
        "/api/sessions/{userID}/persona": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Select the voice persona",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"description": "Persona", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.personaRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.SessionResult"}},
                    "409": {"description": "Not allowed in the current state", "schema": {"$ref": "#/definitions/message.SessionResult"}}
                }
            }
        },
        "/api/sessions/{userID}/protection": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Toggle voice protection",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"description": "Desired state", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.protectionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.SessionResult"}}
                }
            }
        },
        "/api/sessions/{userID}/recording": {
            "post": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Start recording",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.SessionResult"}},
                    "409": {"description": "A recording is already active", "schema": {"$ref": "#/definitions/message.SessionResult"}}
                }
            }
        },
        "/api/sessions/{userID}/recording/stop": {
            "post": {
                "description": "Accepts the recording as JSON ({\"recording\": \"data:...\"}) or as a raw audio body.\nThe session moves to loading, then to playing or back to idle.",
                "consumes": ["application/json", "audio/webm", "audio/wav"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Stop recording and transform",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"description": "Recording", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.stopRecordingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.SessionResult"}},
                    "400": {"description": "Unreadable recording", "schema": {"$ref": "#/definitions/message.SessionResult"}},
                    "502": {"description": "Voice backend failure", "schema": {"$ref": "#/definitions/message.SessionResult"}}
                }
            }
        },
        "/api/sessions/{userID}/recording/abort": {
            "post": {
                "description": "Reports a recorder failure such as denied microphone access.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Abort recording",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"description": "Reason", "name": "request", "in": "body", "schema": {"$ref": "#/definitions/http.abortRecordingRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.SessionResult"}}
                }
            }
        },
        "/api/sessions/{userID}/playback/ended": {
            "post": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Report end of playback",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.SessionResult"}}
                }
            }
        },
        "/api/sessions/{userID}/save": {
            "post": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Save the generated voice",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/message.SessionResult"}},
                    "409": {"description": "Nothing to save or already saved", "schema": {"$ref": "#/definitions/message.SessionResult"}}
                }
            }
        },
        "/api/sessions/{userID}/events": {
            "get": {
                "tags": ["sessions"],
                "summary": "Stream session events",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols", "schema": {"$ref": "#/definitions/session.Event"}}
                }
            }
        }
    },
    "definitions": {
        "http.abortRecordingRequest": {
            "type": "object",
            "properties": {"reason": {"type": "string"}}
        },
        "http.personaRequest": {
            "type": "object",
            "properties": {"gender": {"type": "string"}}
        },
        "http.protectionRequest": {
            "type": "object",
            "properties": {"enabled": {"type": "boolean"}}
        },
        "http.stopRecordingRequest": {
            "type": "object",
            "properties": {"recording": {"description": "Recording is the captured audio as a data URI.", "type": "string"}}
        },
        "message.AlterVoiceRequest": {
            "type": "object",
            "properties": {
                "gender": {"description": "Gender is the persona selector (\"hero\", \"incognito\", \"robot\").", "type": "string"},
                "text": {"description": "Text is plain text to speak, or a \"data:\" URI carrying a recording.", "type": "string"}
            }
        },
        "message.AlterVoiceResult": {
            "type": "object",
            "properties": {
                "audioDataUri": {"type": "string"},
                "error": {"type": "string"},
                "kind": {"$ref": "#/definitions/message.ErrorKind"},
                "transcript": {"type": "string"}
            }
        },
        "message.CallRequest": {
            "type": "object",
            "properties": {
                "profileId": {"type": "string"},
                "to": {"type": "string"},
                "userId": {"type": "string"}
            }
        },
        "message.CallResult": {
            "type": "object",
            "properties": {
                "callSid": {"type": "string"},
                "error": {"type": "string"},
                "kind": {"$ref": "#/definitions/message.ErrorKind"},
                "status": {"type": "string"},
                "to": {"type": "string"}
            }
        },
        "message.DeleteProfileResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"$ref": "#/definitions/message.ErrorKind"},
                "success": {"type": "boolean"}
            }
        },
        "message.ErrorKind": {
            "type": "string",
            "enum": ["invalid", "not_found", "conflict", "unavailable", "failed"],
            "x-enum-varnames": ["KindInvalid", "KindNotFound", "KindConflict", "KindUnavailable", "KindFailed"]
        },
        "message.ListProfilesResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"$ref": "#/definitions/message.ErrorKind"},
                "profiles": {"type": "array", "items": {"$ref": "#/definitions/message.ProfileSummary"}}
            }
        },
        "message.ProfileAudioResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"$ref": "#/definitions/message.ErrorKind"}
            }
        },
        "message.ProfileResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"$ref": "#/definitions/message.ErrorKind"},
                "profile": {"$ref": "#/definitions/storage.VoiceProfile"}
            }
        },
        "message.ProfileSummary": {
            "type": "object",
            "properties": {
                "createdAt": {"type": "string"},
                "id": {"type": "string"},
                "isCustom": {"type": "boolean"},
                "name": {"type": "string"},
                "securityLevel": {"type": "string"}
            }
        },
        "message.SaveProfileRequest": {
            "type": "object",
            "properties": {
                "audioSrc": {"type": "string"},
                "gender": {"type": "string"},
                "userId": {"type": "string"}
            }
        },
        "message.SaveProfileResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"$ref": "#/definitions/message.ErrorKind"},
                "profileId": {"type": "string"},
                "profileName": {"type": "string"},
                "success": {"type": "boolean"}
            }
        },
        "message.PersonaInfo": {
            "type": "object",
            "properties": {
                "description": {"type": "string"},
                "id": {"type": "string", "enum": ["hero", "incognito", "robot"]},
                "label": {"type": "string"}
            }
        },
        "message.PersonasResult": {
            "type": "object",
            "properties": {
                "personas": {"type": "array", "items": {"$ref": "#/definitions/message.PersonaInfo"}}
            }
        },
        "message.SessionResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "kind": {"$ref": "#/definitions/message.ErrorKind"},
                "session": {"$ref": "#/definitions/session.Snapshot"}
            }
        },
        "message.TokenRequest": {
            "type": "object",
            "properties": {"identity": {"type": "string"}}
        },
        "message.TokenResult": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "expiresAt": {"type": "string"},
                "identity": {"type": "string"},
                "kind": {"$ref": "#/definitions/message.ErrorKind"},
                "token": {"type": "string"}
            }
        },
        "session.Call": {
            "type": "object",
            "properties": {
                "sid": {"type": "string"},
                "startedAt": {"type": "string"},
                "status": {"type": "string"},
                "to": {"type": "string"}
            }
        },
        "session.Event": {
            "type": "object",
            "properties": {
                "notification": {"$ref": "#/definitions/session.Notification"},
                "snapshot": {"$ref": "#/definitions/session.Snapshot"}
            }
        },
        "session.Notification": {
            "type": "object",
            "properties": {
                "description": {"type": "string"},
                "title": {"type": "string"},
                "variant": {"type": "string"}
            }
        },
        "session.Snapshot": {
            "type": "object",
            "properties": {
                "audioDataUri": {"type": "string"},
                "call": {"$ref": "#/definitions/session.Call"},
                "callTime": {"type": "string"},
                "canRecord": {"type": "boolean"},
                "canSelectPersona": {"type": "boolean"},
                "persona": {"type": "string"},
                "profileId": {"type": "string"},
                "protection": {"type": "boolean"},
                "saving": {"type": "boolean"},
                "state": {"type": "string", "enum": ["idle", "recording", "loading", "playing", "saved"]},
                "transcript": {"type": "string"},
                "updatedAt": {"type": "string"},
                "userId": {"type": "string"}
            }
        },
        "storage.VoiceProfile": {
            "type": "object",
            "properties": {
                "audioDataUri": {"type": "string"},
                "createdAt": {"type": "string"},
                "createdBy": {"type": "string"},
                "id": {"type": "string"},
                "isCustom": {"type": "boolean"},
                "name": {"type": "string"},
                "securityLevel": {"type": "string"},
                "updatedAt": {"type": "string"},
                "userId": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "SecureCall API",
	Description:      "Persona voice transformation, voice profiles and Twilio calling for the SecureCall call screen.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
