package bot

// Input is the create/update payload. On update, empty strings and a nil
// Enabled keep the stored value.
type Input struct {
	Username string `json:"username"`
	Token    string `json:"token"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// ListOpts configures filtering and pagination for listing.
type ListOpts struct {
	Offset  int
	Limit   int
	Enabled *bool
}

// EnabledOnly is a ListOpts selecting enabled bots.
func EnabledOnly() ListOpts {
	t := true
	return ListOpts{Enabled: &t}
}
