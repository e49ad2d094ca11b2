package domain

// MatchType selects how a command's phrases are compared to an utterance.
type MatchType string

const (
	MatchExactOrFuzzy MatchType = "exact-or-fuzzy"
	MatchPrefix       MatchType = "prefix"
)

// Command is one entry of the voice command catalog.
type Command struct {
	ID        string    `json:"id"`
	Phrases   []string  `json:"phrases"`
	ScriptRef string    `json:"scriptRef"`
	MatchType MatchType `json:"matchType"`
}

// MatchResult is the outcome of matching one utterance against the catalog.
type MatchResult struct {
	Command       *Command
	Score         float64
	ExtractedArgs []string
}

// AudioChunk is one PCM packet reported by the capture helper.
type AudioChunk struct {
	Data           []byte
	SampleRate     int
	PacketDuration float64
}

// TranscriptEvent is text produced by the transcription backend.
type TranscriptEvent struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"isFinal"`
}

// SessionState models the transcription socket lifecycle.
type SessionState string

const (
	SessionDisconnected    SessionState = "disconnected"
	SessionConnecting      SessionState = "connecting"
	SessionAuthenticated   SessionState = "authenticated"
	SessionStreamingActive SessionState = "streaming"
	SessionCommitting      SessionState = "committing"
)

// HelperState models the capture helper process lifecycle.
type HelperState string

const (
	HelperStopped               HelperState = "stopped"
	HelperStarting              HelperState = "starting"
	HelperRunning               HelperState = "running"
	HelperCrashedPendingRestart HelperState = "crashed_pending_restart"
)

// ErrorCode identifies the origin of an error shown to observers.
type ErrorCode string

const (
	ErrorCodeHelper        ErrorCode = "helper"
	ErrorCodeHelperSpawn   ErrorCode = "helper_spawn"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeNoCredential  ErrorCode = "no_credential"
)
