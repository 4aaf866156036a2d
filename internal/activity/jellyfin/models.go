package jellyfin

import "time"

type userResource struct {
	Name string `json:"Name"`
	ID   string `json:"Id"`
}

type itemsResponse struct {
	Items []itemResource `json:"Items"`
}

type itemResource struct {
	Name              string   `json:"Name"`
	Type              string   `json:"Type"`
	SeriesName        string   `json:"SeriesName"`
	ParentIndexNumber int      `json:"ParentIndexNumber"`
	IndexNumber       int      `json:"IndexNumber"`
	RunTimeTicks      int64    `json:"RunTimeTicks"`
	UserData          userData `json:"UserData"`
}

type userData struct {
	Played         bool   `json:"Played"`
	LastPlayedDate string `json:"LastPlayedDate"`
}

// lastPlayed parses the item's LastPlayedDate, which Jellyfin emits in
// RFC 3339 with sub-second precision.
func (u userData) lastPlayed() time.Time {
	if u.LastPlayedDate == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, u.LastPlayedDate)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

type sessionResource struct {
	ID             string        `json:"Id"`
	UserName       string        `json:"UserName"`
	PlayState      playState     `json:"PlayState"`
	NowPlayingItem *itemResource `json:"NowPlayingItem"`
}

type playState struct {
	PositionTicks int64 `json:"PositionTicks"`
	IsPaused      bool  `json:"IsPaused"`
}
