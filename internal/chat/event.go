package chat

// Source is one citation attached to every fragment of an exchange.
// The list is fixed at context-gathering time and never changes
// mid-stream.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Event is one unit of a streaming exchange. Exactly one terminal
// event (Done=true) closes every stream; a terminal event with Err set
// marks a mid-stream failure after partial output was delivered.
type Event struct {
	Text    string   `json:"text,omitempty"`
	Sources []Source `json:"sources,omitempty"`
	Err     string   `json:"error,omitempty"`
	Done    bool     `json:"done"`
}

// Reply is the result of a non-streaming exchange.
type Reply struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}
