package transcribe

type authContext struct {
	DictionaryContext []string `json:"dictionary_context"`
}

type authMessage struct {
	Type        string      `json:"type"`
	AccessToken string      `json:"access_token"`
	Language    []string    `json:"language"`
	Context     authContext `json:"context"`
}

type audioPackets struct {
	Packets        []string  `json:"packets"`
	Volumes        []float64 `json:"volumes"`
	PacketDuration float64   `json:"packet_duration"`
	AudioEncoding  string    `json:"audio_encoding"`
	ByteEncoding   string    `json:"byte_encoding"`
	SampleRate     int       `json:"sample_rate"`
}

type appendMessage struct {
	Type         string       `json:"type"`
	Position     int          `json:"position"`
	AudioPackets audioPackets `json:"audio_packets"`
}

type commitMessage struct {
	Type         string `json:"type"`
	TotalPackets int    `json:"total_packets"`
}

type inboundMessage struct {
	Status  string `json:"status"`
	Final   bool   `json:"final"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Body    struct {
		Text string `json:"text"`
	} `json:"body"`
}

func (m inboundMessage) errorText() string {
	switch {
	case m.Message != "":
		return m.Message
	case m.Error != "":
		return m.Error
	default:
		return "transcription backend returned an unknown error"
	}
}
