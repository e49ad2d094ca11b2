package domain

// ObserverEventType is the `type` discriminator of observer payloads.
type ObserverEventType string

const (
	ObserverTranscript ObserverEventType = "transcript"
	ObserverListening  ObserverEventType = "listening"
	ObserverCommand    ObserverEventType = "command"
	ObserverError      ObserverEventType = "error"
	ObserverInfo       ObserverEventType = "info"
)

// CommandStatus is the outcome stage reported in `command` events.
type CommandStatus string

const (
	CommandNoMatch  CommandStatus = "no_match"
	CommandMatched  CommandStatus = "matched"
	CommandExecuted CommandStatus = "executed"
	CommandFailed   CommandStatus = "failed"
)

// ObserverEvent is the JSON payload pushed to every observer.
type ObserverEvent struct {
	Type ObserverEventType `json:"type"`

	Active *bool `json:"active,omitempty"`

	Text  string `json:"text,omitempty"`
	Final bool   `json:"final,omitempty"`

	Status    CommandStatus `json:"status,omitempty"`
	CommandID string        `json:"commandId,omitempty"`
	Score     float64       `json:"score,omitempty"`
	Args      []string      `json:"args,omitempty"`

	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message,omitempty"`
}

func ListeningEvent(active bool) ObserverEvent {
	return ObserverEvent{Type: ObserverListening, Active: &active}
}

func TranscriptUpdate(event TranscriptEvent) ObserverEvent {
	return ObserverEvent{Type: ObserverTranscript, Text: event.Text, Final: event.IsFinal}
}

func ErrorEvent(code ErrorCode, message string) ObserverEvent {
	return ObserverEvent{Type: ObserverError, Code: code, Message: message}
}

func InfoEvent(code ErrorCode, message string) ObserverEvent {
	return ObserverEvent{Type: ObserverInfo, Code: code, Message: message}
}

// CommandEvent reports progress of one utterance through matching and execution.
func CommandEvent(status CommandStatus, text string, match *MatchResult, message string) ObserverEvent {
	event := ObserverEvent{Type: ObserverCommand, Status: status, Text: text, Message: message}
	if match != nil && match.Command != nil {
		event.CommandID = match.Command.ID
		event.Score = match.Score
		event.Args = match.ExtractedArgs
	}
	return event
}
