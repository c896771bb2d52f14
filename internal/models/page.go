package models

// Page is one fetched batch of chat history. NextCursor is an opaque
// token for the next older page; empty means history is exhausted.
type Page struct {
	Messages   []Message `json:"messages" msgpack:"messages"`
	NextCursor string    `json:"next_cursor,omitempty" msgpack:"next_cursor,omitempty"`
}

// ChatHistoryResponse is the body of the history endpoint.
type ChatHistoryResponse struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// ToPage converts the response into a cacheable page.
func (r *ChatHistoryResponse) ToPage() Page {
	return Page{Messages: r.Messages, NextCursor: r.NextCursor}
}

// MessageSendRequest is the body of the send endpoint.
type MessageSendRequest struct {
	Content    string `json:"content"`
	ClientUUID string `json:"client_uuid"`
}
