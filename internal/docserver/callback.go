package docserver

import "encoding/json"

// Callback statuses sent by the document server.
const (
	StatusEditing      = 0
	StatusReadyToSave  = 1
	StatusEditedNoSave = 2
	StatusSaveError    = 3
	StatusClosed       = 4
)

// Callback is the body the server POSTs to the callback URL. Status is a
// pointer so that an absent field can be told apart from 0.
type Callback struct {
	Status *int     `json:"status"`
	Key    string   `json:"key,omitempty"`
	URL    string   `json:"url,omitempty"`
	Users  []string `json:"users,omitempty"`
	Token  string   `json:"token,omitempty"`
}

// CallbackReply is the acknowledgement the server expects; error 0 means accepted.
type CallbackReply struct {
	Error   int    `json:"error"`
	Message string `json:"message,omitempty"`
}

func ParseCallback(body []byte) (*Callback, error) {
	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, err
	}
	return &cb, nil
}

// KnownStatus reports whether s is one of the statuses above.
func KnownStatus(s int) bool {
	return s >= StatusEditing && s <= StatusClosed
}
