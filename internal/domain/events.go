package domain

// HelperEvent is one decoded unit of the capture helper's output stream,
// or a lifecycle notification from its supervisor. The set is closed.
type HelperEvent interface {
	helperEvent()
}

type HelperStartListening struct{}

type HelperStopListening struct{}

type HelperHeartbeat struct{}

type HelperAudio struct {
	Chunk AudioChunk
}

// HelperReportedError is an `error` line written by the helper itself.
type HelperReportedError struct {
	Message string
}

// HelperMalformedLine carries a line that could not be decoded.
type HelperMalformedLine struct {
	Line string
	Err  error
}

// HelperExited is emitted when the helper process terminates.
type HelperExited struct {
	Code       int
	Restarting bool
}

// HelperSpawnFailed is emitted when the helper could not be started at all.
type HelperSpawnFailed struct {
	Err error
}

func (HelperStartListening) helperEvent() {}
func (HelperStopListening) helperEvent()  {}
func (HelperHeartbeat) helperEvent()      {}
func (HelperAudio) helperEvent()          {}
func (HelperReportedError) helperEvent()  {}
func (HelperMalformedLine) helperEvent()  {}
func (HelperExited) helperEvent()         {}
func (HelperSpawnFailed) helperEvent()    {}

// SessionEvent is emitted by the transcription session. The set is closed.
type SessionEvent interface {
	sessionEvent()
}

// SessionReady is emitted when the backend acknowledges authentication.
type SessionReady struct{}

// SessionTranscript wraps partial and final transcript text.
type SessionTranscript struct {
	TranscriptEvent
}

// SessionBackendError carries an error reported by the backend.
type SessionBackendError struct {
	Message string
}

// SessionClosed is emitted when the transport drops.
type SessionClosed struct {
	Err error
}

func (SessionReady) sessionEvent()        {}
func (SessionTranscript) sessionEvent()   {}
func (SessionBackendError) sessionEvent() {}
func (SessionClosed) sessionEvent()       {}
